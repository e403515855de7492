package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

const auditEntityCampaign = "newsletter_campaign"

// recordAudit appends an audit entry. Failures are logged and never returned.
func recordAudit(
	ctx context.Context,
	audit repository.AuditRepository,
	logger *zap.Logger,
	action string,
	campaignID string,
	details map[string]any,
	at time.Time,
) {
	if audit == nil {
		return
	}

	entry := &domain.AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: auditEntityCampaign,
		EntityID:   campaignID,
		Details:    details,
		CreatedAt:  at,
	}
	if err := audit.Create(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to write audit entry",
			zap.String("action", action),
			zap.String("campaignId", campaignID),
			zap.Error(err),
		)
	}
}
