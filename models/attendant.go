package models

import "time"

type AttendantStatus string

const (
	AttendantOnline  AttendantStatus = "online"
	AttendantBusy    AttendantStatus = "busy"
	AttendantOffline AttendantStatus = "offline"
)

func (s AttendantStatus) IsValid() bool {
	switch s {
	case AttendantOnline, AttendantBusy, AttendantOffline:
		return true
	}
	return false
}

// Attendant is a staff member's chat identity. Load counters are never
// stored here; they are recomputed from the room set on every fetch.
type Attendant struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	TenantID         uint            `json:"tenant_id" gorm:"index"`
	UserID           uint            `json:"user_id" gorm:"uniqueIndex"`
	DisplayName      string          `json:"display_name"`
	Status           AttendantStatus `json:"status" gorm:"size:16;default:'offline'"`
	MaxConversations int             `json:"max_conversations" gorm:"default:3"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AttendantLoad is derived on every fetch, never persisted.
type AttendantLoad struct {
	AttendantID      uint `json:"attendant_id"`
	ActiveCount      int  `json:"active_count"`
	WaitingCount     int  `json:"waiting_count"`
	MaxConversations int  `json:"max_conversations"`
}

func (l AttendantLoad) HasCapacity() bool {
	return l.ActiveCount < l.MaxConversations
}
