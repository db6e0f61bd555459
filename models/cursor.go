package models

import "time"

// ReadCursor is the per (room, attendant) watermark of the last message the
// attendant has seen. It only ever moves forward; unread counts are derived
// from it on every fetch.
type ReadCursor struct {
	RoomID      uint      `json:"room_id" gorm:"primaryKey"`
	AttendantID uint      `json:"attendant_id" gorm:"primaryKey"`
	LastReadAt  time.Time `json:"last_read_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ReadCursor) TableName() string {
	return "read_cursors"
}
