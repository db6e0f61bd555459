package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"supportdesk/models"
	"supportdesk/storage"
)

// CursorService tracks, per attendant per room, the last message seen and
// derives unread counts from it. Counts are recomputed on every fetch:
// a small query cost buys immunity to the double-increment and
// missed-decrement bugs mutable counters suffer under concurrent writes.
type CursorService struct {
	store storage.Store
}

func NewCursorService(store storage.Store) *CursorService {
	return &CursorService{store: store}
}

// MarkRead moves the attendant's watermark to now. A stale call can never
// move it backwards; the upsert ignores older timestamps.
func (s *CursorService) MarkRead(ctx context.Context, tenantID, roomID, attendantID uint) error {
	if _, err := s.store.GetRoom(ctx, tenantID, roomID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return s.store.UpsertCursor(ctx, roomID, attendantID, time.Now())
}

// UnreadCount counts visitor messages after the watermark. A missing
// cursor row means the attendant has seen nothing: the cursor defaults to
// the epoch and every visitor message counts.
func (s *CursorService) UnreadCount(ctx context.Context, roomID, attendantID uint) (int64, error) {
	cursor, err := s.store.GetCursor(ctx, roomID, attendantID)
	if err != nil {
		return 0, err
	}
	return s.store.CountUnread(ctx, roomID, cursor)
}

// RoomSummary is one row of the console room list.
type RoomSummary struct {
	Room           models.ChatRoom `json:"room"`
	UnreadCount    int64           `json:"unread_count"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

// RoomList returns the attendant's console view of open rooms: unread
// conversations first, then most recent activity.
func (s *CursorService) RoomList(ctx context.Context, tenantID, attendantID uint) ([]RoomSummary, error) {
	waiting, err := s.store.ListRooms(ctx, tenantID, storage.RoomFilter{Status: models.RoomWaiting})
	if err != nil {
		return nil, err
	}
	active, err := s.store.ListRooms(ctx, tenantID, storage.RoomFilter{Status: models.RoomActive})
	if err != nil {
		return nil, err
	}

	rooms := append(waiting, active...)
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		unread, err := s.UnreadCount(ctx, room.ID, attendantID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, RoomSummary{
			Room:           room,
			UnreadCount:    unread,
			LastActivityAt: room.LastActivityAt,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		iUnread := summaries[i].UnreadCount > 0
		jUnread := summaries[j].UnreadCount > 0
		if iUnread != jUnread {
			return iUnread
		}
		return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
	})
	return summaries, nil
}
