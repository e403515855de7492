package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

// Maintenance purges audit log entries past their retention window.
type Maintenance struct {
	settings             repository.SettingsRepository
	audit                repository.AuditRepository
	defaultRetentionDays int
	logger               *zap.Logger
	now                  func() time.Time
}

func NewMaintenance(
	settings repository.SettingsRepository,
	audit repository.AuditRepository,
	defaultRetentionDays int,
	logger *zap.Logger,
) (*Maintenance, error) {
	if settings == nil || audit == nil {
		return nil, fmt.Errorf("settings and audit repositories are required")
	}
	if defaultRetentionDays <= 0 {
		return nil, fmt.Errorf("default retention days must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Maintenance{
		settings:             settings,
		audit:                audit,
		defaultRetentionDays: defaultRetentionDays,
		logger:               logger,
		now:                  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run never fails the caller; the outcome is reported in the returned text.
func (m *Maintenance) Run(ctx context.Context) string {
	days, err := m.retentionDays(ctx)
	if err != nil {
		m.logger.Error("maintenance failed to read retention setting", zap.Error(err))
		return fmt.Sprintf("maintenance failed: %v", err)
	}

	cutoff := m.now().AddDate(0, 0, -days)
	purged, err := m.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("maintenance failed to purge audit log", zap.Error(err))
		return fmt.Sprintf("maintenance failed: %v", err)
	}

	m.logger.Info("audit log purged",
		zap.Int64("purged", purged),
		zap.Int("retentionDays", days),
	)
	return fmt.Sprintf("purged %d audit log entries older than %d days", purged, days)
}

func (m *Maintenance) retentionDays(ctx context.Context) (int, error) {
	days, found, err := m.settings.GetInt(ctx, repository.SettingAuditLogRetentionDays)
	if err != nil {
		return 0, err
	}
	if !found || days <= 0 {
		return m.defaultRetentionDays, nil
	}
	return days, nil
}
