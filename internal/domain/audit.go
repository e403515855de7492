package domain

import "time"

const (
	AuditActionNewsletterInitiated = "newsletter.initiated"
	AuditActionNewsletterBatchSent = "newsletter.batch_sent"
	AuditActionNewsletterCompleted = "newsletter.completed"
	AuditActionNewsletterFailed    = "newsletter.failed"
)

// AuditEntry records one administrative or scheduled action.
type AuditEntry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
}
