package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: users and groups come first since every other table points at them
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&Category{},
		&Event{},
		&MemberNickname{},
		&GroupSettings{},
		&Notification{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
