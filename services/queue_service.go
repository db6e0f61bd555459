package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"supportdesk/metrics"
	"supportdesk/models"
	"supportdesk/realtime"
	rediscache "supportdesk/redis"
	"supportdesk/storage"
)

// AssignPolicy picks the attendant a waiting room should be offered to.
// It only chooses; the race-safe conditional claim decides who wins.
type AssignPolicy func(ctx context.Context, q *QueueService, tenantID uint) (*models.Attendant, error)

// QueueService computes the live queue and attendant load and executes
// claim/transfer with compare-and-swap semantics. Two attendants opening
// the same waiting room can never both end up owning it: the second
// conditional update affects zero rows and surfaces ErrConflict.
type QueueService struct {
	store    storage.Store
	rooms    *RoomService
	pub      realtime.Publisher
	presence *rediscache.RedisClient // optional
	policy   AssignPolicy
}

func NewQueueService(store storage.Store, rooms *RoomService, pub realtime.Publisher, presence *rediscache.RedisClient) *QueueService {
	return &QueueService{
		store:    store,
		rooms:    rooms,
		pub:      pub,
		presence: presence,
		policy:   LeastLoadedPolicy,
	}
}

// SetPolicy swaps the auto-assignment policy; the claim path is unchanged.
func (s *QueueService) SetPolicy(p AssignPolicy) {
	s.policy = p
}

func (s *QueueService) publish(ev realtime.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

// QueueFilter narrows the waiting-room view: all waiting rooms, only
// unassigned ones, or those waiting on a specific attendant.
type QueueFilter struct {
	Unassigned  bool
	AttendantID *uint
}

func (s *QueueService) Queue(ctx context.Context, tenantID uint, f QueueFilter) ([]models.ChatRoom, error) {
	rooms, err := s.store.ListRooms(ctx, tenantID, storage.RoomFilter{
		Status:      models.RoomWaiting,
		Unassigned:  f.Unassigned,
		AttendantID: f.AttendantID,
	})
	if err != nil {
		return nil, err
	}
	// The gauge tracks the full waiting set regardless of what view was
	// asked for.
	if waiting, err := s.store.CountRooms(ctx, tenantID, storage.RoomFilter{Status: models.RoomWaiting}); err == nil {
		metrics.WaitingRooms.WithLabelValues(strconv.FormatUint(uint64(tenantID), 10)).Set(float64(waiting))
	}
	return rooms, nil
}

// AttendantLoad is recomputed from the room set on every call; it is never
// a stored field anyone can drift out of sync.
func (s *QueueService) AttendantLoad(ctx context.Context, tenantID, attendantID uint) (models.AttendantLoad, error) {
	attendant, err := s.store.GetAttendant(ctx, tenantID, attendantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.AttendantLoad{}, ErrAttendantNotFound
		}
		return models.AttendantLoad{}, err
	}

	active, err := s.store.CountRooms(ctx, tenantID, storage.RoomFilter{
		Status:      models.RoomActive,
		AttendantID: &attendantID,
	})
	if err != nil {
		return models.AttendantLoad{}, err
	}
	waiting, err := s.store.CountRooms(ctx, tenantID, storage.RoomFilter{
		Status:      models.RoomWaiting,
		AttendantID: &attendantID,
	})
	if err != nil {
		return models.AttendantLoad{}, err
	}

	return models.AttendantLoad{
		AttendantID:      attendantID,
		ActiveCount:      int(active),
		WaitingCount:     int(waiting),
		MaxConversations: attendant.MaxConversations,
	}, nil
}

// Claim takes ownership of a waiting room for the attendant. Losing the
// conditional update returns ErrConflict; the caller refreshes the queue
// and may retry against a different room.
func (s *QueueService) Claim(ctx context.Context, tenantID, roomID, attendantID uint) (*models.ChatRoom, error) {
	attendant, err := s.store.GetAttendant(ctx, tenantID, attendantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAttendantNotFound
		}
		return nil, err
	}

	now := time.Now()
	rows, err := s.store.AssignWaiting(ctx, tenantID, roomID, attendantID, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		metrics.ClaimConflicts.Inc()
		room, err := s.store.GetRoom(ctx, tenantID, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrRoomNotFound
			}
			return nil, err
		}
		if room.IsClosed() {
			return nil, ErrInvalidTransition
		}
		return nil, ErrConflict
	}

	s.appendSystemMessage(ctx, tenantID, roomID,
		fmt.Sprintf("%s joined the conversation", attendant.DisplayName))

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

// Transfer reassigns a room (waiting or active) to another attendant and
// records the handover in the timeline. startedAt is untouched.
func (s *QueueService) Transfer(ctx context.Context, tenantID, roomID, fromAttendantID, toAttendantID uint) (*models.ChatRoom, error) {
	to, err := s.store.GetAttendant(ctx, tenantID, toAttendantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAttendantNotFound
		}
		return nil, err
	}

	fromName := "the queue"
	if from, err := s.store.GetAttendant(ctx, tenantID, fromAttendantID); err == nil {
		fromName = from.DisplayName
	}

	now := time.Now()
	rows, err := s.store.Reassign(ctx, tenantID, roomID, toAttendantID, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.store.GetRoom(ctx, tenantID, roomID); errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInvalidTransition
	}

	s.appendSystemMessage(ctx, tenantID, roomID,
		fmt.Sprintf("conversation transferred from %s to %s", fromName, to.DisplayName))

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

// AutoAssign routes a waiting room through the configured policy over the
// same conditional claim primitive manual claims use.
func (s *QueueService) AutoAssign(ctx context.Context, tenantID, roomID uint) (*models.ChatRoom, error) {
	attendant, err := s.policy(ctx, s, tenantID)
	if err != nil {
		return nil, err
	}
	return s.Claim(ctx, tenantID, roomID, attendant.ID)
}

// LeastLoadedPolicy offers the room to the online attendant with the
// fewest active conversations and spare capacity; ties go to the lowest
// attendant id.
func LeastLoadedPolicy(ctx context.Context, q *QueueService, tenantID uint) (*models.Attendant, error) {
	attendants, err := q.store.ListAttendants(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var best *models.Attendant
	bestActive := 0
	for i := range attendants {
		a := attendants[i]
		if a.Status != models.AttendantOnline {
			continue
		}
		load, err := q.AttendantLoad(ctx, tenantID, a.ID)
		if err != nil {
			return nil, err
		}
		if !load.HasCapacity() {
			continue
		}
		if best == nil || load.ActiveCount < bestActive {
			best = &attendants[i]
			bestActive = load.ActiveCount
		}
	}
	if best == nil {
		return nil, ErrNoAttendant
	}
	return best, nil
}

// SetPresence updates the attendant's status in the store and mirrors it
// into the Redis presence hash when one is configured.
func (s *QueueService) SetPresence(ctx context.Context, tenantID, attendantID uint, status models.AttendantStatus) error {
	if !status.IsValid() {
		return ErrInvalidInput
	}
	attendant, err := s.store.GetAttendant(ctx, tenantID, attendantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAttendantNotFound
		}
		return err
	}
	if err := s.store.SetAttendantStatus(ctx, tenantID, attendantID, status); err != nil {
		return err
	}
	if s.presence != nil {
		_ = s.presence.SetAttendantPresence(ctx, tenantID, rediscache.AttendantPresence{
			AttendantID: attendantID,
			DisplayName: attendant.DisplayName,
			Status:      status,
			UpdatedAt:   time.Now(),
		})
	}
	return nil
}

func (s *QueueService) appendSystemMessage(ctx context.Context, tenantID, roomID uint, content string) {
	_, _ = s.rooms.SendMessage(ctx, SendMessageInput{
		TenantID:   tenantID,
		RoomID:     roomID,
		SenderType: models.SenderSystem,
		Content:    content,
	})
}
