package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	intentmodels "paidping-backend/internal/features/intent/models"
	messagemodels "paidping-backend/internal/features/message/models"
	profilemodels "paidping-backend/internal/features/profile/models"
)

// Open initializes a PostgreSQL-backed gorm handle.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres DSN")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// AutoMigrate creates or updates the schema for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&profilemodels.Profile{},
		&messagemodels.Message{},
		&messagemodels.InboxStats{},
		&intentmodels.PaymentIntent{},
	)
}
