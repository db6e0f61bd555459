package models

import "time"

// BusinessHourRule gates visitor-facing messaging per tenant per weekday.
// Times are "15:04" strings in the tenant's timezone.
type BusinessHourRule struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"index:idx_hours_tenant_weekday"`
	Weekday   int       `json:"weekday" gorm:"index:idx_hours_tenant_weekday"` // time.Weekday, 0 = Sunday
	StartTime string    `json:"start_time" gorm:"size:5"`
	EndTime   string    `json:"end_time" gorm:"size:5"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantState carries the scheduler-maintained outside-hours gate so it
// survives restarts and is shared across instances.
type TenantState struct {
	TenantID     uint      `json:"tenant_id" gorm:"primaryKey"`
	Timezone     string    `json:"timezone" gorm:"size:64;default:'UTC'"`
	OutsideHours bool      `json:"outside_hours"`
	UpdatedAt    time.Time `json:"updated_at"`
}
