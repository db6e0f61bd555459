// Package storage declares the persistence interfaces the chat services
// depend on, so the gorm-backed repository can be swapped for the in-memory
// implementation in tests.
package storage

import (
	"context"
	"time"

	"supportdesk/models"
)

// RoomFilter narrows room listings. Zero values mean "no constraint".
type RoomFilter struct {
	Status        models.RoomStatus
	Unassigned    bool  // only rooms with no attendant
	AttendantID   *uint // only rooms owned by this attendant
	IdleBefore    *time.Time
	StartedBefore *time.Time
	NotPriority   models.Priority
}

// RoomStorage owns rooms and visitors. All conditional mutations return the
// number of rows affected; zero means the precondition no longer held and
// the caller lost the race.
type RoomStorage interface {
	CreateVisitor(ctx context.Context, v *models.Visitor) error
	GetVisitor(ctx context.Context, tenantID, visitorID uint) (*models.Visitor, error)
	LinkVisitorContact(ctx context.Context, tenantID, visitorID, contactID uint) error

	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoom(ctx context.Context, tenantID, roomID uint) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, tenantID uint, f RoomFilter) ([]models.ChatRoom, error)
	CountRooms(ctx context.Context, tenantID uint, f RoomFilter) (int64, error)
	CountVisitorOpenRooms(ctx context.Context, tenantID, visitorID uint) (int64, error)
	// ListRoomTenants returns the distinct tenant ids with open rooms.
	ListRoomTenants(ctx context.Context) ([]uint, error)
	TouchActivity(ctx context.Context, roomID uint, at time.Time) error

	// AssignWaiting sets the attendant on a room only if it is still
	// waiting and unowned.
	AssignWaiting(ctx context.Context, tenantID, roomID, attendantID uint, now time.Time) (int64, error)
	// Reassign moves a room to another attendant unless it is closed.
	Reassign(ctx context.Context, tenantID, roomID, toAttendantID uint, now time.Time) (int64, error)
	// Close transitions a room to closed unless it already is.
	Close(ctx context.Context, tenantID, roomID uint, res models.ResolutionStatus, now time.Time) (int64, error)
	// SetCsat records the rating only on a closed, unrated room.
	SetCsat(ctx context.Context, tenantID, roomID uint, score int, comment string) (int64, error)
	// EscalatePriority raises a waiting room's priority if not already there.
	EscalatePriority(ctx context.Context, tenantID, roomID uint, to models.Priority) (int64, error)
}

type MessageStorage interface {
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, tenantID, roomID uint, includeInternal bool, limit, offset int) ([]models.ChatMessage, error)
	// CountUnread counts visitor-sent, non-internal messages after the watermark.
	CountUnread(ctx context.Context, roomID uint, after time.Time) (int64, error)
}

type CursorStorage interface {
	// UpsertCursor never moves an existing watermark backwards.
	UpsertCursor(ctx context.Context, roomID, attendantID uint, at time.Time) error
	// GetCursor returns the zero time when no cursor row exists yet.
	GetCursor(ctx context.Context, roomID, attendantID uint) (time.Time, error)
}

type AttendantStorage interface {
	SaveAttendant(ctx context.Context, a *models.Attendant) error
	GetAttendant(ctx context.Context, tenantID, attendantID uint) (*models.Attendant, error)
	GetAttendantByUser(ctx context.Context, userID uint) (*models.Attendant, error)
	ListAttendants(ctx context.Context, tenantID uint) ([]models.Attendant, error)
	SetAttendantStatus(ctx context.Context, tenantID, attendantID uint, status models.AttendantStatus) error
}

type RuleStorage interface {
	SaveBusinessHourRule(ctx context.Context, rule *models.BusinessHourRule) error
	ListBusinessHours(ctx context.Context, tenantID uint) ([]models.BusinessHourRule, error)
	SaveTenantState(ctx context.Context, state *models.TenantState) error
	GetTenantState(ctx context.Context, tenantID uint) (*models.TenantState, error)
	ListTenantStates(ctx context.Context) ([]models.TenantState, error)
	// SetOutsideHours flips the gate only when the value differs.
	SetOutsideHours(ctx context.Context, tenantID uint, outside bool) (int64, error)
}

type UserStorage interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// Store is the full persistence surface the server wires together.
type Store interface {
	RoomStorage
	MessageStorage
	CursorStorage
	AttendantStorage
	RuleStorage
	UserStorage
}
