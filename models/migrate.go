package models

import "gorm.io/gorm"

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Visitor{},
		&Attendant{},
		&ChatRoom{},
		&ChatMessage{},
		&ReadCursor{},
		&BusinessHourRule{},
		&TenantState{},
	)
}
