package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"gorm.io/gorm"
)

func createNewsletterTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_newsletter_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignModel{}, &repository.RecipientModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE newsletter_recipients
					ADD CONSTRAINT fk_newsletter_recipients_campaign
					FOREIGN KEY (campaign_id) REFERENCES newsletter_campaigns (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_newsletter_campaigns_active ON newsletter_campaigns (scheduled_at) WHERE status IN ('scheduled', 'in_progress')`,
				`CREATE INDEX IF NOT EXISTS idx_newsletter_recipients_queue ON newsletter_recipients (campaign_id, position) WHERE status = 'queued'`,
				`CREATE INDEX IF NOT EXISTS idx_newsletter_recipients_sent_at ON newsletter_recipients (sent_at) WHERE status = 'sent'`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_newsletter_recipients_campaign_subscriber ON newsletter_recipients (campaign_id, subscriber_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientModel{}, &repository.CampaignModel{})
		},
	}
}
