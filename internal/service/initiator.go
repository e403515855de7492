package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/content"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

// InitiationResult describes a newly scheduled campaign.
type InitiationResult struct {
	CampaignID string
	PostID     string
	Recipients int
	Message    string
}

// CampaignInitiator turns a published post into a scheduled campaign with one
// queued recipient per subscribed subscriber.
type CampaignInitiator struct {
	posts       repository.PostRepository
	subscribers repository.SubscriberRepository
	campaigns   repository.CampaignRepository
	recipients  repository.RecipientRepository
	audit       repository.AuditRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
}

func NewCampaignInitiator(
	posts repository.PostRepository,
	subscribers repository.SubscriberRepository,
	campaigns repository.CampaignRepository,
	recipients repository.RecipientRepository,
	audit repository.AuditRepository,
	logger *zap.Logger,
) (*CampaignInitiator, error) {
	if posts == nil || subscribers == nil || campaigns == nil || recipients == nil {
		return nil, fmt.Errorf("post, subscriber, campaign and recipient repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignInitiator{
		posts:       posts,
		subscribers: subscribers,
		campaigns:   campaigns,
		recipients:  recipients,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}, nil
}

func (s *CampaignInitiator) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *CampaignInitiator) Initiate(ctx context.Context, postID string) (*InitiationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, fmt.Errorf("%w: post id is required", domain.ErrValidation)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	if post.NewsletterSent() {
		return nil, fmt.Errorf("%w: post %s", domain.ErrPostAlreadySent, postID)
	}

	preview := content.Preview(post)

	subscribers, err := s.subscribers.ListSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}

	now := s.now()
	campaign, err := domain.NewScheduledCampaign(s.newID(), post, preview, len(subscribers), now)
	if err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	recipients := make([]*domain.Recipient, len(subscribers))
	for i, subscriber := range subscribers {
		recipients[i] = &domain.Recipient{
			ID:           s.newID(),
			CampaignID:   campaign.ID,
			SubscriberID: subscriber.ID,
			Email:        subscriber.Email,
			Position:     i,
			Status:       domain.RecipientStatusQueued,
			CreatedAt:    now,
		}
	}

	if err := s.recipients.CreateBatch(ctx, recipients); err != nil {
		return nil, s.rollback(ctx, logger, campaign.ID, fmt.Errorf("failed to queue recipients: %w", err))
	}

	if err := s.posts.MarkNewsletterSent(ctx, post.ID, now); err != nil {
		return nil, s.rollback(ctx, logger, campaign.ID, fmt.Errorf("failed to mark post as sent: %w", err))
	}

	s.metrics.IncCampaignInitiated()
	recordAudit(ctx, s.audit, logger, domain.AuditActionNewsletterInitiated, campaign.ID, map[string]any{
		"postId":          post.ID,
		"subject":         campaign.Subject,
		"totalRecipients": campaign.TotalRecipients,
	}, now)

	logger.Info("newsletter campaign scheduled",
		zap.String("campaignId", campaign.ID),
		zap.String("postId", post.ID),
		zap.Int("recipients", campaign.TotalRecipients),
	)

	return &InitiationResult{
		CampaignID: campaign.ID,
		PostID:     post.ID,
		Recipients: campaign.TotalRecipients,
		Message:    fmt.Sprintf("Newsletter scheduled for %d subscribers", campaign.TotalRecipients),
	}, nil
}

// rollback deletes the campaign row; recipients go with it through the
// foreign key cascade. The returned error always wraps cause.
func (s *CampaignInitiator) rollback(ctx context.Context, logger *zap.Logger, campaignID string, cause error) error {
	err := s.campaigns.Delete(context.WithoutCancel(ctx), campaignID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		logger.Warn("newsletter campaign rolled back",
			zap.String("campaignId", campaignID),
			zap.Error(cause),
		)
		return cause
	}

	logger.Error("failed to roll back newsletter campaign",
		zap.String("campaignId", campaignID),
		zap.NamedError("cause", cause),
		zap.Error(err),
	)
	return fmt.Errorf("%w (rollback failed: %v)", cause, err)
}
