package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/watchtower/internal/models"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Incident{},
		&models.ShiftHandoff{},
		&models.GuardReport{},
		&models.ConversationState{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
