package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"supportdesk/models"
	"supportdesk/storage"
)

// Store is the gorm-backed implementation of storage.Store. Every
// conditional mutation is a single UPDATE whose WHERE clause re-states the
// precondition; RowsAffected tells the caller whether it still held. That
// compare-and-swap is the concurrency-control boundary of the whole chat
// core, no extra locking is layered on top.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ storage.Store = (*Store)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// --- visitors ---

func (s *Store) CreateVisitor(ctx context.Context, v *models.Visitor) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *Store) GetVisitor(ctx context.Context, tenantID, visitorID uint) (*models.Visitor, error) {
	var v models.Visitor
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, visitorID).
		First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) LinkVisitorContact(ctx context.Context, tenantID, visitorID, contactID uint) error {
	return s.db.WithContext(ctx).Model(&models.Visitor{}).
		Where("tenant_id = ? AND id = ?", tenantID, visitorID).
		Update("contact_id", contactID).Error
}

// --- rooms ---

func (s *Store) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return s.db.WithContext(ctx).Create(room).Error
}

func (s *Store) GetRoom(ctx context.Context, tenantID, roomID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, roomID).
		First(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *Store) roomQuery(ctx context.Context, tenantID uint, f storage.RoomFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.ChatRoom{}).Where("tenant_id = ?", tenantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Unassigned {
		q = q.Where("attendant_id IS NULL")
	}
	if f.AttendantID != nil {
		q = q.Where("attendant_id = ?", *f.AttendantID)
	}
	if f.IdleBefore != nil {
		q = q.Where("last_activity_at < ?", *f.IdleBefore)
	}
	if f.StartedBefore != nil {
		q = q.Where("started_at < ?", *f.StartedBefore)
	}
	if f.NotPriority != "" {
		q = q.Where("priority <> ?", f.NotPriority)
	}
	return q
}

func (s *Store) ListRooms(ctx context.Context, tenantID uint, f storage.RoomFilter) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.roomQuery(ctx, tenantID, f).
		Order("started_at ASC, id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (s *Store) CountRooms(ctx context.Context, tenantID uint, f storage.RoomFilter) (int64, error) {
	var n int64
	err := s.roomQuery(ctx, tenantID, f).Count(&n).Error
	return n, err
}

func (s *Store) CountVisitorOpenRooms(ctx context.Context, tenantID, visitorID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND visitor_id = ? AND status <> ?", tenantID, visitorID, models.RoomClosed).
		Count(&n).Error
	return n, err
}

func (s *Store) ListRoomTenants(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("status <> ?", models.RoomClosed).
		Distinct().
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

func (s *Store) TouchActivity(ctx context.Context, roomID uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ? AND last_activity_at < ?", roomID, at).
		Update("last_activity_at", at).Error
}

func (s *Store) AssignWaiting(ctx context.Context, tenantID, roomID, attendantID uint, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND id = ? AND status = ? AND attendant_id IS NULL",
			tenantID, roomID, models.RoomWaiting).
		Updates(map[string]interface{}{
			"attendant_id": attendantID,
			"status":       models.RoomActive,
			"assigned_at":  now,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) Reassign(ctx context.Context, tenantID, roomID, toAttendantID uint, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND id = ? AND status <> ?", tenantID, roomID, models.RoomClosed).
		Updates(map[string]interface{}{
			"attendant_id": toAttendantID,
			"status":       models.RoomActive,
			"assigned_at":  now,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) Close(ctx context.Context, tenantID, roomID uint, res models.ResolutionStatus, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND id = ? AND status <> ?", tenantID, roomID, models.RoomClosed).
		Updates(map[string]interface{}{
			"status":            models.RoomClosed,
			"resolution_status": res,
			"closed_at":         now,
		})
	return result.RowsAffected, result.Error
}

func (s *Store) SetCsat(ctx context.Context, tenantID, roomID uint, score int, comment string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND id = ? AND status = ? AND csat_score IS NULL",
			tenantID, roomID, models.RoomClosed).
		Updates(map[string]interface{}{
			"csat_score":   score,
			"csat_comment": comment,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) EscalatePriority(ctx context.Context, tenantID, roomID uint, to models.Priority) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("tenant_id = ? AND id = ? AND status = ? AND priority <> ?",
			tenantID, roomID, models.RoomWaiting, to).
		Update("priority", to)
	return res.RowsAffected, res.Error
}

// --- messages ---

func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *Store) ListMessages(ctx context.Context, tenantID, roomID uint, includeInternal bool, limit, offset int) ([]models.ChatMessage, error) {
	q := s.db.WithContext(ctx).
		Where("tenant_id = ? AND room_id = ?", tenantID, roomID)
	if !includeInternal {
		q = q.Where("is_internal = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.ChatMessage
	err := q.Offset(offset).Order("created_at ASC, id ASC").Find(&msgs).Error
	return msgs, err
}

func (s *Store) CountUnread(ctx context.Context, roomID uint, after time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("room_id = ? AND sender_type = ? AND is_internal = ? AND created_at > ?",
			roomID, models.SenderVisitor, false, after).
		Count(&n).Error
	return n, err
}

// --- read cursors ---

func (s *Store) UpsertCursor(ctx context.Context, roomID, attendantID uint, at time.Time) error {
	cursor := models.ReadCursor{
		RoomID:      roomID,
		AttendantID: attendantID,
		LastReadAt:  at,
	}
	// DO UPDATE is guarded so a stale mark-read can never move the
	// watermark backwards.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}, {Name: "attendant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_read_at": at,
			"updated_at":   time.Now(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "excluded.last_read_at > read_cursors.last_read_at"},
		}},
	}).Create(&cursor).Error
}

func (s *Store) GetCursor(ctx context.Context, roomID, attendantID uint) (time.Time, error) {
	var cursor models.ReadCursor
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND attendant_id = ?", roomID, attendantID).
		First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return cursor.LastReadAt, nil
}

// --- attendants ---

func (s *Store) SaveAttendant(ctx context.Context, a *models.Attendant) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) GetAttendant(ctx context.Context, tenantID, attendantID uint) (*models.Attendant, error) {
	var a models.Attendant
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, attendantID).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) GetAttendantByUser(ctx context.Context, userID uint) (*models.Attendant, error) {
	var a models.Attendant
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) ListAttendants(ctx context.Context, tenantID uint) ([]models.Attendant, error) {
	var attendants []models.Attendant
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&attendants).Error
	return attendants, err
}

func (s *Store) SetAttendantStatus(ctx context.Context, tenantID, attendantID uint, status models.AttendantStatus) error {
	return s.db.WithContext(ctx).Model(&models.Attendant{}).
		Where("tenant_id = ? AND id = ?", tenantID, attendantID).
		Update("status", status).Error
}

// --- business hours / tenant state ---

func (s *Store) SaveBusinessHourRule(ctx context.Context, rule *models.BusinessHourRule) error {
	return s.db.WithContext(ctx).Save(rule).Error
}

func (s *Store) ListBusinessHours(ctx context.Context, tenantID uint) ([]models.BusinessHourRule, error) {
	var rules []models.BusinessHourRule
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("weekday ASC").
		Find(&rules).Error
	return rules, err
}

func (s *Store) SaveTenantState(ctx context.Context, state *models.TenantState) error {
	return s.db.WithContext(ctx).Save(state).Error
}

func (s *Store) GetTenantState(ctx context.Context, tenantID uint) (*models.TenantState, error) {
	var state models.TenantState
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&state).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &state, nil
}

func (s *Store) ListTenantStates(ctx context.Context) ([]models.TenantState, error) {
	var states []models.TenantState
	err := s.db.WithContext(ctx).Order("tenant_id ASC").Find(&states).Error
	return states, err
}

func (s *Store) SetOutsideHours(ctx context.Context, tenantID uint, outside bool) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.TenantState{}).
		Where("tenant_id = ? AND outside_hours <> ?", tenantID, outside).
		Update("outside_hours", outside)
	return res.RowsAffected, res.Error
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, userID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
