package models

import "time"

type SenderType string

const (
	SenderVisitor   SenderType = "visitor"
	SenderAttendant SenderType = "attendant"
	SenderSystem    SenderType = "system"
)

func (s SenderType) IsValid() bool {
	switch s {
	case SenderVisitor, SenderAttendant, SenderSystem:
		return true
	}
	return false
}

// Attachment is optional file metadata carried by a message.
type Attachment struct {
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ChatMessage is immutable once written. Internal messages are staff-only
// notes and are never shown to the visitor. Ordering key is
// (room_id, created_at), ties broken by insertion order (id).
type ChatMessage struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	TenantID   uint       `json:"tenant_id"`
	RoomID     uint       `json:"room_id" gorm:"index:idx_messages_room_created"`
	SenderType SenderType `json:"sender_type" gorm:"size:16"`
	SenderID   *uint      `json:"sender_id"`
	Content    string     `json:"content" gorm:"type:text"`
	IsInternal bool       `json:"is_internal"`
	Attachment Attachment `json:"attachment" gorm:"embedded;embeddedPrefix:attachment_"`
	CreatedAt  time.Time  `json:"created_at" gorm:"index:idx_messages_room_created"`
}
