package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportdesk/models"
	"supportdesk/repository"
)

func newTestCursorService(t *testing.T) (*CursorService, *RoomService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	rooms := NewRoomService(store, nil, nil, testChatConfig())
	return NewCursorService(store), rooms, store
}

func sendVisitorMessage(t *testing.T, rooms *RoomService, roomID uint, content string) {
	t.Helper()
	_, err := rooms.SendMessage(context.Background(), SendMessageInput{
		TenantID:   1,
		RoomID:     roomID,
		SenderType: models.SenderVisitor,
		Content:    content,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestUnreadCountLifecycle(t *testing.T) {
	cursors, rooms, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)
	room, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// No cursor yet: every visitor message is unread.
	for i := 0; i < 3; i++ {
		sendVisitorMessage(t, rooms, room.ID, "hello")
	}
	unread, err := cursors.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 3 {
		t.Errorf("unread = %d, want 3", unread)
	}

	if err := cursors.MarkRead(ctx, 1, room.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	unread, err = cursors.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread after mark = %d, want 0", unread)
	}

	time.Sleep(2 * time.Millisecond)
	sendVisitorMessage(t, rooms, room.ID, "are you there?")
	unread, err = cursors.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 1 {
		t.Errorf("unread after new message = %d, want 1", unread)
	}
}

func TestUnreadIgnoresStaffAndSystemTraffic(t *testing.T) {
	cursors, rooms, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)
	room, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	for _, m := range []SendMessageInput{
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderVisitor, Content: "hi"},
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderAttendant, Content: "hello"},
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderSystem, Content: "joined"},
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderAttendant, Content: "note", IsInternal: true},
	} {
		if _, err := rooms.SendMessage(ctx, m); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	unread, err := cursors.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 1 {
		t.Errorf("unread = %d, want only the visitor message", unread)
	}
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	cursors, rooms, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)
	room, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if err := cursors.MarkRead(ctx, 1, room.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	current, err := store.GetCursor(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}

	// A delayed request carrying an older timestamp is ignored.
	stale := current.Add(-time.Minute)
	if err := store.UpsertCursor(ctx, room.ID, alice.ID, stale); err != nil {
		t.Fatalf("UpsertCursor: %v", err)
	}
	after, err := store.GetCursor(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if after.Before(current) {
		t.Errorf("cursor moved backwards: %v -> %v", current, after)
	}
}

func TestMarkReadUnknownRoom(t *testing.T) {
	cursors, _, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)
	if err := cursors.MarkRead(ctx, 1, 999, alice.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room: err = %v, want ErrRoomNotFound", err)
	}
}

func TestRoomListOrdersUnreadFirst(t *testing.T) {
	cursors, rooms, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)

	read, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1, DisplayName: "first"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sendVisitorMessage(t, rooms, read.ID, "hi")
	if err := cursors.MarkRead(ctx, 1, read.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	unread, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1, DisplayName: "second"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sendVisitorMessage(t, rooms, unread.ID, "anyone?")

	// The read room is the most recently active one.
	time.Sleep(2 * time.Millisecond)
	if _, err := rooms.SendMessage(ctx, SendMessageInput{
		TenantID: 1, RoomID: read.ID, SenderType: models.SenderAttendant, Content: "on it",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := cursors.MarkRead(ctx, 1, read.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	list, err := cursors.RoomList(ctx, 1, alice.ID)
	if err != nil {
		t.Fatalf("RoomList: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d rooms, want 2", len(list))
	}
	if list[0].Room.ID != unread.ID {
		t.Errorf("first room = %d, want unread room %d despite older activity", list[0].Room.ID, unread.ID)
	}
	if list[0].UnreadCount != 1 || list[1].UnreadCount != 0 {
		t.Errorf("unread counts = %d,%d, want 1,0", list[0].UnreadCount, list[1].UnreadCount)
	}
}

func TestRoomListExcludesClosedRooms(t *testing.T) {
	cursors, rooms, store := newTestCursorService(t)
	ctx := context.Background()

	alice := seedAttendant(t, store, 1, "alice", 3)
	open, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	closed, err := rooms.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := rooms.CloseRoom(ctx, 1, closed.ID, nil, models.ResolutionResolved, ""); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}

	list, err := cursors.RoomList(ctx, 1, alice.ID)
	if err != nil {
		t.Fatalf("RoomList: %v", err)
	}
	if len(list) != 1 || list[0].Room.ID != open.ID {
		t.Errorf("list = %+v, want only the open room", list)
	}
}
