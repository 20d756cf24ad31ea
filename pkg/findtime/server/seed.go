package server

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// DefaultAdminEmail is the account created on an empty database
const DefaultAdminEmail = "admin@findtime.local"

// EnsureAdminExists creates a default admin user if no admin exists in the database.
func EnsureAdminExists(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        DefaultAdminEmail,
		FirstName:    "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	logrus.WithField("email", DefaultAdminEmail).Warn("created default admin user with password 'changeme'")
	return nil
}
