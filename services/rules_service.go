package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportdesk/config"
	"supportdesk/models"
	"supportdesk/realtime"
	"supportdesk/storage"
)

// RulesService applies time-based effects independent of any attendant's
// session: the outside-business-hours gate, idle auto-close and the
// waiting-SLA escalation. Every effect is a conditional update, so a
// second evaluation with the same clock is a no-op and concurrent
// scheduler instances are safe.
type RulesService struct {
	store storage.Store
	rooms *RoomService
	pub   realtime.Publisher
	cfg   config.RulesConfig
}

func NewRulesService(store storage.Store, rooms *RoomService, pub realtime.Publisher, cfg config.RulesConfig) *RulesService {
	return &RulesService{store: store, rooms: rooms, pub: pub, cfg: cfg}
}

func (s *RulesService) publish(ev realtime.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

// EvaluateAll runs one evaluation tick for every known tenant. The tenant
// set is the union of tenants with open rooms and tenants that already
// have a state row, so a fresh tenant is picked up on the first tick
// after its first room arrives.
func (s *RulesService) EvaluateAll(ctx context.Context, now time.Time) error {
	tenantIDs, err := s.store.ListRoomTenants(ctx)
	if err != nil {
		return err
	}
	seen := make(map[uint]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		seen[id] = struct{}{}
	}

	// Tenants with only closed rooms still need their hours gate kept
	// current.
	states, err := s.store.ListTenantStates(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if _, ok := seen[state.TenantID]; !ok {
			seen[state.TenantID] = struct{}{}
			tenantIDs = append(tenantIDs, state.TenantID)
		}
	}

	for _, tenantID := range tenantIDs {
		if err := s.EvaluateBusinessRules(ctx, tenantID, now); err != nil {
			return fmt.Errorf("tenant %d: %w", tenantID, err)
		}
	}
	return nil
}

// EvaluateBusinessRules applies the tenant's time-based rules at the given
// instant. Idempotent: rooms already in the target state are left alone.
func (s *RulesService) EvaluateBusinessRules(ctx context.Context, tenantID uint, now time.Time) error {
	if err := s.applyHoursGate(ctx, tenantID, now); err != nil {
		return err
	}
	if err := s.closeIdleRooms(ctx, tenantID, now); err != nil {
		return err
	}
	return s.escalateStaleWaiting(ctx, tenantID, now)
}

func (s *RulesService) applyHoursGate(ctx context.Context, tenantID uint, now time.Time) error {
	state, err := s.store.GetTenantState(ctx, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			state = &models.TenantState{TenantID: tenantID, Timezone: "UTC"}
			if err := s.store.SaveTenantState(ctx, state); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	loc, err := time.LoadLocation(state.Timezone)
	if err != nil {
		loc = time.UTC
	}

	rules, err := s.store.ListBusinessHours(ctx, tenantID)
	if err != nil {
		return err
	}

	inside := withinBusinessHours(rules, now.In(loc))
	_, err = s.store.SetOutsideHours(ctx, tenantID, !inside)
	return err
}

// withinBusinessHours reports whether the local instant falls inside any
// active rule for its weekday. A tenant with no rules at all is always
// open; a tenant with rules but none matching the weekday is closed.
func withinBusinessHours(rules []models.BusinessHourRule, local time.Time) bool {
	if len(rules) == 0 {
		return true
	}
	minutes := local.Hour()*60 + local.Minute()
	for _, rule := range rules {
		if !rule.IsActive || rule.Weekday != int(local.Weekday()) {
			continue
		}
		start, err1 := parseClock(rule.StartTime)
		end, err2 := parseClock(rule.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if minutes >= start && minutes < end {
			return true
		}
	}
	return false
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (s *RulesService) closeIdleRooms(ctx context.Context, tenantID uint, now time.Time) error {
	if s.cfg.IdleCloseMinutes <= 0 {
		return nil
	}
	cutoff := now.Add(-time.Duration(s.cfg.IdleCloseMinutes) * time.Minute)
	candidates, err := s.store.ListRooms(ctx, tenantID, storage.RoomFilter{
		Status:     models.RoomActive,
		IdleBefore: &cutoff,
	})
	if err != nil {
		return err
	}

	for _, room := range candidates {
		rows, err := s.store.Close(ctx, tenantID, room.ID, models.ResolutionPending, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Closed (or revived) by someone else between the listing and
			// the conditional update; nothing to do.
			continue
		}
		_, _ = s.rooms.SendMessage(ctx, SendMessageInput{
			TenantID:   tenantID,
			RoomID:     room.ID,
			SenderType: models.SenderSystem,
			Content:    "conversation closed automatically due to inactivity",
			IsInternal: true,
		})
		updated, err := s.store.GetRoom(ctx, tenantID, room.ID)
		if err != nil {
			return err
		}
		s.publish(realtime.Event{
			Type:     realtime.EventRoomUpdated,
			TenantID: tenantID,
			RoomID:   room.ID,
			Room:     updated,
			At:       now,
		})
	}
	return nil
}

func (s *RulesService) escalateStaleWaiting(ctx context.Context, tenantID uint, now time.Time) error {
	if s.cfg.WaitingSLAMinutes <= 0 {
		return nil
	}
	cutoff := now.Add(-time.Duration(s.cfg.WaitingSLAMinutes) * time.Minute)
	candidates, err := s.store.ListRooms(ctx, tenantID, storage.RoomFilter{
		Status:        models.RoomWaiting,
		StartedBefore: &cutoff,
		NotPriority:   models.PriorityUrgent,
	})
	if err != nil {
		return err
	}

	for _, room := range candidates {
		rows, err := s.store.EscalatePriority(ctx, tenantID, room.ID, models.PriorityUrgent)
		if err != nil {
			return err
		}
		if rows == 0 {
			continue
		}
		updated, err := s.store.GetRoom(ctx, tenantID, room.ID)
		if err != nil {
			return err
		}
		s.publish(realtime.Event{
			Type:     realtime.EventRoomUpdated,
			TenantID: tenantID,
			RoomID:   room.ID,
			Room:     updated,
			At:       now,
		})
	}
	return nil
}

// OutsideHours reports the current gate for visitor-facing banners.
func (s *RulesService) OutsideHours(ctx context.Context, tenantID uint) (bool, error) {
	state, err := s.store.GetTenantState(ctx, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return state.OutsideHours, nil
}
