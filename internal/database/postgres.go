package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the schema for every persisted type.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Course{},
		&models.Category{},
		&models.ExerciseRound{},
		&models.Exercise{},
		&models.Chapter{},
		&models.Submission{},
		&models.ServiceFailureEvent{},
		&gradebook.GradeItem{},
		&gradebook.GradeRow{},
	)
}
