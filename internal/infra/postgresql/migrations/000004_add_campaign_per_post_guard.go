package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// At most one non-failed campaign may exist per post.
func addCampaignPerPostGuard() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_add_campaign_per_post_guard",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_newsletter_campaigns_post_live ON newsletter_campaigns (post_id) WHERE status <> 'failed'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_newsletter_campaigns_post_live`).Error
		},
	}
}
