package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
)

// CampaignDetail is a campaign plus its per-status recipient breakdown.
type CampaignDetail struct {
	Campaign *domain.Campaign
	Counts   []repository.RecipientStatusCount
}

// CampaignQueries backs the read-only drill-down endpoints.
type CampaignQueries struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
}

func NewCampaignQueries(campaigns repository.CampaignRepository, recipients repository.RecipientRepository) *CampaignQueries {
	return &CampaignQueries{campaigns: campaigns, recipients: recipients}
}

func (q *CampaignQueries) List(ctx context.Context, params repository.CampaignListParams) ([]domain.Campaign, int64, error) {
	return q.campaigns.List(ctx, params)
}

func (q *CampaignQueries) Get(ctx context.Context, id string) (*CampaignDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := q.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := q.recipients.CountByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients: %w", err)
	}

	return &CampaignDetail{Campaign: campaign, Counts: counts}, nil
}

// SettingsService validates operator settings before they are stored.
type SettingsService struct {
	settings repository.SettingsRepository
}

func NewSettingsService(settings repository.SettingsRepository) *SettingsService {
	return &SettingsService{settings: settings}
}

func (s *SettingsService) SetNewsletterDailyLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: daily limit must be >= 0", domain.ErrValidation)
	}
	return s.settings.SetInt(ctx, repository.SettingNewsletterDailyLimit, limit)
}
