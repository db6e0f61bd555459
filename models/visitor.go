package models

import "time"

// Visitor is a chat participant who is not staff. Created on first widget
// load; identity fields are immutable, only the known-contact link may be
// attached later.
type Visitor struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TenantID    uint      `json:"tenant_id" gorm:"index"`
	DisplayName string    `json:"display_name"`
	ContactID   *uint     `json:"contact_id"` // link to an external contact record
	CreatedAt   time.Time `json:"created_at"`
}
