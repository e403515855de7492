package quota

import (
	"context"

	"github.com/kursadbilgin/newsletter-engine/internal/repository"
)

// SettingsLimitSource reads the daily limit from the persisted settings table.
type SettingsLimitSource struct {
	settings repository.SettingsRepository
}

func NewSettingsLimitSource(settings repository.SettingsRepository) *SettingsLimitSource {
	return &SettingsLimitSource{settings: settings}
}

func (s *SettingsLimitSource) DailyLimit(ctx context.Context) (int, bool, error) {
	return s.settings.GetInt(ctx, repository.SettingNewsletterDailyLimit)
}
