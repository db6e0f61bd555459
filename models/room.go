package models

import "time"

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomActive  RoomStatus = "active"
	RoomClosed  RoomStatus = "closed"
)

func (s RoomStatus) IsValid() bool {
	switch s {
	case RoomWaiting, RoomActive, RoomClosed:
		return true
	}
	return false
}

type ResolutionStatus string

const (
	ResolutionNone      ResolutionStatus = "none"
	ResolutionResolved  ResolutionStatus = "resolved"
	ResolutionPending   ResolutionStatus = "pending"
	ResolutionEscalated ResolutionStatus = "escalated"
)

func (s ResolutionStatus) IsValid() bool {
	switch s {
	case ResolutionNone, ResolutionResolved, ResolutionPending, ResolutionEscalated:
		return true
	}
	return false
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ChatRoom is one conversation between a visitor and (eventually) one
// attendant. While status is "waiting" the room has no attendant; once an
// attendant claims it the room becomes "active"; "closed" is terminal and
// only the CSAT fields may change afterwards.
type ChatRoom struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	TenantID         uint             `json:"tenant_id" gorm:"index:idx_rooms_tenant_status"`
	VisitorID        uint             `json:"visitor_id" gorm:"index"`
	AttendantID      *uint            `json:"attendant_id" gorm:"index"`
	Status           RoomStatus       `json:"status" gorm:"size:16;default:'waiting';index:idx_rooms_tenant_status"`
	ResolutionStatus ResolutionStatus `json:"resolution_status" gorm:"size:16;default:'none'"`
	Priority         Priority         `json:"priority" gorm:"size:16;default:'normal'"`
	StartedAt        time.Time        `json:"started_at"`
	AssignedAt       *time.Time       `json:"assigned_at"`
	ClosedAt         *time.Time       `json:"closed_at"`
	LastActivityAt   time.Time        `json:"last_activity_at" gorm:"index"`
	CsatScore        *int             `json:"csat_score"`
	CsatComment      string           `json:"csat_comment"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (r *ChatRoom) IsClosed() bool {
	return r.Status == RoomClosed
}
