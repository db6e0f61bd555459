package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportdesk/config"
	"supportdesk/models"
	"supportdesk/repository"
)

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		MaxRoomsPerVisitor: 1,
		MaxQueueSize:       100,
	}
}

func newTestRoomService(t *testing.T) (*RoomService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewRoomService(store, nil, nil, testChatConfig()), store
}

func seedAttendant(t *testing.T, store *repository.MemoryStore, tenantID uint, name string, max int) *models.Attendant {
	t.Helper()
	a := &models.Attendant{
		TenantID:         tenantID,
		DisplayName:      name,
		Status:           models.AttendantOnline,
		MaxConversations: max,
	}
	if err := store.SaveAttendant(context.Background(), a); err != nil {
		t.Fatalf("seed attendant: %v", err)
	}
	return a
}

func TestCreateRoomStartsWaiting(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, DisplayName: "visitor"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.Status != models.RoomWaiting {
		t.Errorf("status = %q, want waiting", room.Status)
	}
	if room.AttendantID != nil {
		t.Errorf("new room has attendant %d", *room.AttendantID)
	}
	if room.VisitorID == 0 {
		t.Error("visitor was not created")
	}
	if room.Priority != models.PriorityNormal {
		t.Errorf("priority = %q, want normal", room.Priority)
	}
}

func TestCreateRoomRejectsUnknownVisitor(t *testing.T) {
	svc, store := newTestRoomService(t)
	ctx := context.Background()

	if _, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, VisitorID: 999}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("dangling visitor id: err = %v, want ErrInvalidInput", err)
	}

	// A visitor belonging to another tenant is just as unknown.
	other := models.Visitor{TenantID: 2, DisplayName: "stranger"}
	if err := store.CreateVisitor(ctx, &other); err != nil {
		t.Fatalf("CreateVisitor: %v", err)
	}
	if _, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, VisitorID: other.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("cross-tenant visitor id: err = %v, want ErrInvalidInput", err)
	}

	mine := models.Visitor{TenantID: 1, DisplayName: "returning"}
	if err := store.CreateVisitor(ctx, &mine); err != nil {
		t.Fatalf("CreateVisitor: %v", err)
	}
	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, VisitorID: mine.ID})
	if err != nil {
		t.Fatalf("CreateRoom with known visitor: %v", err)
	}
	if room.VisitorID != mine.ID {
		t.Errorf("room visitor = %d, want %d", room.VisitorID, mine.ID)
	}
}

func TestCreateRoomPerVisitorLimit(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, DisplayName: "visitor"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	_, err = svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, VisitorID: room.VisitorID})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("second open room: err = %v, want ErrCapacityExceeded", err)
	}

	// Closing the first room frees the slot.
	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionResolved, ""); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}
	if _, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1, VisitorID: room.VisitorID}); err != nil {
		t.Fatalf("room after close: %v", err)
	}
}

func TestCreateRoomQueueCap(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := testChatConfig()
	cfg.MaxQueueSize = 2
	svc := NewRoomService(store, nil, nil, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1}); err != nil {
			t.Fatalf("CreateRoom %d: %v", i, err)
		}
	}
	_, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("over cap: err = %v, want ErrCapacityExceeded", err)
	}
}

func TestSendMessageClosedRoom(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionResolved, ""); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}

	_, err = svc.SendMessage(ctx, SendMessageInput{
		TenantID:   1,
		RoomID:     room.ID,
		SenderType: models.SenderVisitor,
		Content:    "hello?",
	})
	if !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("visitor message on closed room: err = %v, want ErrRoomClosed", err)
	}

	// Internal notes are still allowed after closure.
	if _, err := svc.SendMessage(ctx, SendMessageInput{
		TenantID:   1,
		RoomID:     room.ID,
		SenderType: models.SenderAttendant,
		Content:    "wrap-up note",
		IsInternal: true,
	}); err != nil {
		t.Fatalf("internal note on closed room: %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if _, err := svc.SendMessage(ctx, SendMessageInput{
		TenantID: 1, RoomID: room.ID, SenderType: "robot", Content: "hi",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad sender type: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SendMessage(ctx, SendMessageInput{
		TenantID: 1, RoomID: room.ID, SenderType: models.SenderVisitor, Content: "   ",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank content: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SendMessage(ctx, SendMessageInput{
		TenantID: 1, RoomID: 999, SenderType: models.SenderVisitor, Content: "hi",
	}); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room: err = %v, want ErrRoomNotFound", err)
	}
}

func TestSendMessageTouchesActivity(t *testing.T) {
	svc, store := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	before := room.LastActivityAt

	time.Sleep(2 * time.Millisecond)
	if _, err := svc.SendMessage(ctx, SendMessageInput{
		TenantID: 1, RoomID: room.ID, SenderType: models.SenderVisitor, Content: "hi",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	updated, err := store.GetRoom(ctx, 1, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if !updated.LastActivityAt.After(before) {
		t.Error("LastActivityAt did not advance")
	}
}

func TestListMessagesHidesInternalFromVisitors(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, m := range []SendMessageInput{
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderVisitor, Content: "hi"},
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderAttendant, Content: "note", IsInternal: true},
		{TenantID: 1, RoomID: room.ID, SenderType: models.SenderAttendant, Content: "hello"},
	} {
		if _, err := svc.SendMessage(ctx, m); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	visitorView, err := svc.ListMessages(ctx, 1, room.ID, false, 50, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(visitorView) != 2 {
		t.Errorf("visitor view has %d messages, want 2", len(visitorView))
	}
	for _, m := range visitorView {
		if m.IsInternal {
			t.Error("visitor view contains an internal note")
		}
	}

	staffView, err := svc.ListMessages(ctx, 1, room.ID, true, 50, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(staffView) != 3 {
		t.Errorf("staff view has %d messages, want 3", len(staffView))
	}
	for i := 1; i < len(staffView); i++ {
		if staffView[i].CreatedAt.Before(staffView[i-1].CreatedAt) {
			t.Error("messages out of order")
		}
	}
}

func TestCloseRoomWritesNoteInsideTimeline(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	closed, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionResolved, "issue fixed")
	if err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}
	if closed.Status != models.RoomClosed || closed.ResolutionStatus != models.ResolutionResolved {
		t.Errorf("closed room: status=%q resolution=%q", closed.Status, closed.ResolutionStatus)
	}
	if closed.ClosedAt == nil {
		t.Error("ClosedAt not set")
	}

	msgs, err := svc.ListMessages(ctx, 1, room.ID, true, 50, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsInternal || msgs[0].Content != "issue fixed" {
		t.Errorf("close note not recorded as internal message: %+v", msgs)
	}

	// Closing again is an invalid transition, not a silent success.
	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionResolved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double close: err = %v, want ErrInvalidTransition", err)
	}
}

func TestCloseRoomRejectsBadResolution(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionNone, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("resolution none: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionEscalated, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("resolution escalated: err = %v, want ErrInvalidInput", err)
	}
}

func TestSubmitCsat(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if _, err := svc.SubmitCsat(ctx, 1, room.ID, 5, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("csat on open room: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.CloseRoom(ctx, 1, room.ID, nil, models.ResolutionResolved, ""); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}

	if _, err := svc.SubmitCsat(ctx, 1, room.ID, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("score 0: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SubmitCsat(ctx, 1, room.ID, 6, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("score 6: err = %v, want ErrInvalidInput", err)
	}

	rated, err := svc.SubmitCsat(ctx, 1, room.ID, 4, "pretty good")
	if err != nil {
		t.Fatalf("SubmitCsat: %v", err)
	}
	if rated.CsatScore == nil || *rated.CsatScore != 4 || rated.CsatComment != "pretty good" {
		t.Errorf("csat not recorded: %+v", rated)
	}

	if _, err := svc.SubmitCsat(ctx, 1, room.ID, 1, "changed my mind"); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second rating: err = %v, want ErrAlreadyRated", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, _ := newTestRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, CreateRoomInput{TenantID: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := svc.GetRoom(ctx, 2, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("cross-tenant fetch: err = %v, want ErrRoomNotFound", err)
	}
}
