package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectnest/internal/models"
)

const PendingApplicationIndex = "idx_applications_one_pending"

// Open connects to Postgres. The caller owns the returned handle. Unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates every table and seeds the category list.
func Migrate(gdb *gorm.DB, log *zap.Logger) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Project{},
		&models.ProjectTag{},
		&models.Application{},
		&models.Membership{},
		&models.Comment{},
		&models.Conversation{},
		&models.Participant{},
		&models.Message{},
		&models.Notification{},
		&models.Bookmark{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	// at most one pending application per applicant and project
	err = gdb.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + PendingApplicationIndex +
		` ON applications (project_id, applicant_id) WHERE status = 'pending'`).Error
	if err != nil {
		return fmt.Errorf("create %s: %w", PendingApplicationIndex, err)
	}
	log.Info("database migration completed")

	return seedCategories(gdb, log)
}

func seedCategories(gdb *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := gdb.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		log.Debug("categories already seeded, skipping")
		return nil
	}

	categories := []models.Category{
		{Name: "web", Description: "Web applications and sites"},
		{Name: "mobile", Description: "iOS, Android and cross-platform apps"},
		{Name: "devtools", Description: "Developer tooling, CLIs and libraries"},
		{Name: "data", Description: "Data engineering, analytics and ML"},
		{Name: "games", Description: "Games and interactive media"},
		{Name: "other", Description: "Everything else"},
	}
	if err := gdb.Create(&categories).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	log.Info("initial categories created", zap.Int("count", len(categories)))
	return nil
}
