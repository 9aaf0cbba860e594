package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// Migrate creates or updates every table the API persists to.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Counter{},
		&models.Report{},
		&models.ReportNote{},
		&models.ConversationMessage{},
		&models.ActivityLog{},
		&models.UploadRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
