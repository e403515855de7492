package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"gorm.io/gorm"
)

// posts and subscribers belong to the CMS; AutoMigrate only fills in what is missing.
func createContentTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_content_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PostModel{}, &repository.SubscriberModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_subscribers_status_created ON subscribers (status, created_at)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_subscribers_status_created`).Error
		},
	}
}
