package models

import "testing"

func TestRoomStatusIsValid(t *testing.T) {
	tests := []struct {
		status RoomStatus
		want   bool
	}{
		{RoomWaiting, true},
		{RoomActive, true},
		{RoomClosed, true},
		{"", false},
		{"archived", false},
	}
	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.want {
			t.Errorf("RoomStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPriorityIsValid(t *testing.T) {
	tests := []struct {
		priority Priority
		want     bool
	}{
		{PriorityNormal, true},
		{PriorityHigh, true},
		{PriorityUrgent, true},
		{"", false},
		{"critical", false},
	}
	for _, tt := range tests {
		if got := tt.priority.IsValid(); got != tt.want {
			t.Errorf("Priority(%q).IsValid() = %v, want %v", tt.priority, got, tt.want)
		}
	}
}

func TestSenderTypeIsValid(t *testing.T) {
	tests := []struct {
		sender SenderType
		want   bool
	}{
		{SenderVisitor, true},
		{SenderAttendant, true},
		{SenderSystem, true},
		{"bot", false},
	}
	for _, tt := range tests {
		if got := tt.sender.IsValid(); got != tt.want {
			t.Errorf("SenderType(%q).IsValid() = %v, want %v", tt.sender, got, tt.want)
		}
	}
}

func TestIsClosed(t *testing.T) {
	room := ChatRoom{Status: RoomActive}
	if room.IsClosed() {
		t.Error("active room reports closed")
	}
	room.Status = RoomClosed
	if !room.IsClosed() {
		t.Error("closed room reports open")
	}
}

func TestAttendantLoadHasCapacity(t *testing.T) {
	tests := []struct {
		active, max int
		want        bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
		{4, 3, false},
	}
	for _, tt := range tests {
		load := AttendantLoad{ActiveCount: tt.active, MaxConversations: tt.max}
		if got := load.HasCapacity(); got != tt.want {
			t.Errorf("HasCapacity(active=%d, max=%d) = %v, want %v", tt.active, tt.max, got, tt.want)
		}
	}
}
