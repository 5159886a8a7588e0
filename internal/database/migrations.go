package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"gorm.io/gorm"
)

// Migrate auto-migrates every model, then applies the versioned migrations
// that AutoMigrate cannot express.
func Migrate(db *gorm.DB, logPrefix string) error {
	logging.Logf("[%s] Running GORM auto-migrations...", logPrefix)
	for _, model := range GetAllModels() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601150001_click_events_by_time",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_click_events_url_time ON click_events (short_url_id, timestamp)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_click_events_url_time").Error
			},
		},
		{
			ID: "202601150002_temp_email_messages_by_inbox",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_temp_email_messages_inbox_time ON temp_email_messages (temp_email_id, received_at)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_temp_email_messages_inbox_time").Error
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Logf("[%s] Migrations completed successfully", logPrefix)
	return nil
}
