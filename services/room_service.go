package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportdesk/config"
	"supportdesk/limiter"
	"supportdesk/metrics"
	"supportdesk/models"
	"supportdesk/realtime"
	"supportdesk/storage"
)

// RoomService owns the room lifecycle: creation, messaging, closure and
// CSAT. Every mutation goes through the store's conditional primitives and
// is published to the fan-out layer on success.
type RoomService struct {
	store   storage.Store
	pub     realtime.Publisher
	limiter *limiter.Manager // optional
	cfg     config.ChatConfig
}

func NewRoomService(store storage.Store, pub realtime.Publisher, lim *limiter.Manager, cfg config.ChatConfig) *RoomService {
	return &RoomService{store: store, pub: pub, limiter: lim, cfg: cfg}
}

func (s *RoomService) publish(ev realtime.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

type CreateRoomInput struct {
	TenantID    uint
	VisitorID   uint   // 0 creates a new visitor
	DisplayName string // used when creating the visitor
	ContactID   *uint  // optional known-contact link
	Priority    models.Priority
}

// CreateRoom starts a waiting conversation, creating the visitor identity
// when the widget has none yet. Per-visitor and tenant-wide queue limits
// reject the room at creation time rather than queueing it forever.
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.ChatRoom, error) {
	visitorID := in.VisitorID
	if visitorID == 0 {
		visitor := models.Visitor{
			TenantID:    in.TenantID,
			DisplayName: in.DisplayName,
			ContactID:   in.ContactID,
			CreatedAt:   time.Now(),
		}
		if err := s.store.CreateVisitor(ctx, &visitor); err != nil {
			return nil, fmt.Errorf("create visitor: %w", err)
		}
		visitorID = visitor.ID
	} else {
		if _, err := s.store.GetVisitor(ctx, in.TenantID, visitorID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrInvalidInput
			}
			return nil, err
		}
		if in.ContactID != nil {
			if err := s.store.LinkVisitorContact(ctx, in.TenantID, visitorID, *in.ContactID); err != nil {
				return nil, err
			}
		}
	}

	if s.limiter != nil && s.cfg.CreateBurstLimit > 0 {
		key := fmt.Sprintf("chat:create:%d:%d", in.TenantID, visitorID)
		window := time.Duration(s.cfg.CreateBurstWindow) * time.Second
		ok, err := s.limiter.Allow(ctx, key, s.cfg.CreateBurstLimit, window)
		if err == nil && !ok {
			return nil, ErrRateLimited
		}
	}

	open, err := s.store.CountVisitorOpenRooms(ctx, in.TenantID, visitorID)
	if err != nil {
		return nil, err
	}
	if open >= int64(s.cfg.MaxRoomsPerVisitor) {
		return nil, ErrCapacityExceeded
	}

	waiting, err := s.store.CountRooms(ctx, in.TenantID, storage.RoomFilter{Status: models.RoomWaiting})
	if err != nil {
		return nil, err
	}
	if waiting >= int64(s.cfg.MaxQueueSize) {
		return nil, ErrCapacityExceeded
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	now := time.Now()
	room := models.ChatRoom{
		TenantID:         in.TenantID,
		VisitorID:        visitorID,
		Status:           models.RoomWaiting,
		ResolutionStatus: models.ResolutionNone,
		Priority:         priority,
		StartedAt:        now,
		LastActivityAt:   now,
	}
	if err := s.store.CreateRoom(ctx, &room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	metrics.RoomsCreated.Inc()
	s.publish(realtime.Event{
		Type:     realtime.EventRoomCreated,
		TenantID: room.TenantID,
		RoomID:   room.ID,
		Room:     &room,
		At:       now,
	})
	return &room, nil
}

type SendMessageInput struct {
	TenantID   uint
	RoomID     uint
	SenderType models.SenderType
	SenderID   *uint
	Content    string
	IsInternal bool
	Attachment *models.Attachment
}

// SendMessage appends to the room's immutable message stream. Closed rooms
// only accept internal notes.
func (s *RoomService) SendMessage(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	if !in.SenderType.IsValid() {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(in.Content) == "" && in.Attachment == nil {
		return nil, ErrInvalidInput
	}

	room, err := s.store.GetRoom(ctx, in.TenantID, in.RoomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if room.IsClosed() && !in.IsInternal {
		return nil, ErrRoomClosed
	}

	now := time.Now()
	msg := models.ChatMessage{
		TenantID:   in.TenantID,
		RoomID:     in.RoomID,
		SenderType: in.SenderType,
		SenderID:   in.SenderID,
		Content:    in.Content,
		IsInternal: in.IsInternal,
		CreatedAt:  now,
	}
	if in.Attachment != nil {
		msg.Attachment = *in.Attachment
	}
	if err := s.store.AppendMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.store.TouchActivity(ctx, in.RoomID, now); err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(in.SenderType)).Inc()
	s.publish(realtime.Event{
		Type:     realtime.EventMessageCreated,
		TenantID: in.TenantID,
		RoomID:   in.RoomID,
		Message:  &msg,
		At:       now,
	})
	return &msg, nil
}

// CloseRoom transitions a room to closed. The optional note is written as
// an internal message before the transition so it lands inside the
// conversation timeline.
func (s *RoomService) CloseRoom(ctx context.Context, tenantID, roomID uint, attendantID *uint, res models.ResolutionStatus, note string) (*models.ChatRoom, error) {
	if res != models.ResolutionResolved && res != models.ResolutionPending {
		return nil, ErrInvalidInput
	}

	if note != "" {
		_, err := s.SendMessage(ctx, SendMessageInput{
			TenantID:   tenantID,
			RoomID:     roomID,
			SenderType: models.SenderAttendant,
			SenderID:   attendantID,
			Content:    note,
			IsInternal: true,
		})
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	rows, err := s.store.Close(ctx, tenantID, roomID, res, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.store.GetRoom(ctx, tenantID, roomID); errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInvalidTransition
	}

	room, err := s.store.GetRoom(ctx, tenantID, roomID)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.Event{
		Type:     realtime.EventRoomUpdated,
		TenantID: tenantID,
		RoomID:   roomID,
		Room:     room,
		At:       now,
	})
	return room, nil
}

// SubmitCsat records the post-conversation rating, once, on a closed room.
func (s *RoomService) SubmitCsat(ctx context.Context, tenantID, roomID uint, score int, comment string) (*models.ChatRoom, error) {
	if score < 1 || score > 5 {
		return nil, ErrInvalidInput
	}

	rows, err := s.store.SetCsat(ctx, tenantID, roomID, score, comment)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		room, err := s.store.GetRoom(ctx, tenantID, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrRoomNotFound
			}
			return nil, err
		}
		if !room.IsClosed() {
			return nil, ErrInvalidTransition
		}
		return nil, ErrAlreadyRated
	}
	return s.store.GetRoom(ctx, tenantID, roomID)
}

func (s *RoomService) GetRoom(ctx context.Context, tenantID, roomID uint) (*models.ChatRoom, error) {
	room, err := s.store.GetRoom(ctx, tenantID, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// ListMessages returns the room's timeline ordered by created_at with ties
// broken by insertion order. Visitor views exclude internal notes.
func (s *RoomService) ListMessages(ctx context.Context, tenantID, roomID uint, includeInternal bool, limit, offset int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListMessages(ctx, tenantID, roomID, includeInternal, limit, offset)
}
