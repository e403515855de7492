package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/quota"
	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
	"github.com/kursadbilgin/newsletter-engine/internal/render"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// SendBucket is the rate limiter bucket shared by all newsletter sends.
	SendBucket = "newsletter"

	msgDispatchInProgress = "dispatch already in progress"
	msgQuotaExhausted     = "daily newsletter quota reached"
	msgNoActiveCampaign   = "no active newsletter campaigns"
	msgMissingToken       = "missing unsubscribe token"
)

// QuotaChecker reports how many sends the rolling window still allows.
type QuotaChecker interface {
	Check(ctx context.Context) (quota.Snapshot, error)
}

// DispatchLocker provides the single-flight guard around one invocation.
type DispatchLocker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// EmailRenderer builds the per-recipient email body and its links.
type EmailRenderer interface {
	ReadMoreURL(slug string) string
	UnsubscribeURL(token string) string
	Newsletter(data render.NewsletterData) (string, error)
}

type DispatcherDeps struct {
	Quota       QuotaChecker
	Campaigns   repository.CampaignRepository
	Recipients  repository.RecipientRepository
	Posts       repository.PostRepository
	Subscribers repository.SubscriberRepository
	Audit       repository.AuditRepository
	Renderer    EmailRenderer
	Provider    provider.EmailProvider
	RateLimiter ratelimit.RateLimiter
	Lock        DispatchLocker
	From        string
	Logger      *zap.Logger
}

// DispatchResult summarizes one invocation.
type DispatchResult struct {
	Success        bool
	Message        string
	CampaignID     string
	Sent           int
	Failed         int
	Remaining      int
	Completed      bool
	QuotaRemaining int
}

// BatchDispatcher advances the oldest active campaign by at most one
// quota-sized batch per invocation.
type BatchDispatcher struct {
	quota       QuotaChecker
	campaigns   repository.CampaignRepository
	recipients  repository.RecipientRepository
	posts       repository.PostRepository
	subscribers repository.SubscriberRepository
	audit       repository.AuditRepository
	renderer    EmailRenderer
	provider    provider.EmailProvider
	rateLimiter ratelimit.RateLimiter
	lock        DispatchLocker
	from        string
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewBatchDispatcher(deps DispatcherDeps) (*BatchDispatcher, error) {
	switch {
	case deps.Quota == nil:
		return nil, fmt.Errorf("quota checker is required")
	case deps.Campaigns == nil || deps.Recipients == nil:
		return nil, fmt.Errorf("campaign and recipient repositories are required")
	case deps.Posts == nil || deps.Subscribers == nil:
		return nil, fmt.Errorf("post and subscriber repositories are required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Provider == nil:
		return nil, fmt.Errorf("email provider is required")
	case deps.RateLimiter == nil:
		return nil, fmt.Errorf("rate limiter is required")
	case deps.From == "":
		return nil, fmt.Errorf("sender address is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchDispatcher{
		quota:       deps.Quota,
		campaigns:   deps.Campaigns,
		recipients:  deps.Recipients,
		posts:       deps.Posts,
		subscribers: deps.Subscribers,
		audit:       deps.Audit,
		renderer:    deps.Renderer,
		provider:    deps.Provider,
		rateLimiter: deps.RateLimiter,
		lock:        deps.Lock,
		from:        deps.From,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *BatchDispatcher) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Dispatch runs one invocation. Doing nothing is a successful outcome; an
// error means the invocation itself failed and nothing was counted.
func (s *BatchDispatcher) Dispatch(ctx context.Context) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx)
		if err != nil {
			s.metrics.IncDispatch("error")
			return nil, fmt.Errorf("failed to acquire dispatch lock: %w", err)
		}
		if !ok {
			s.metrics.IncDispatch("busy")
			logger.Info("newsletter dispatch skipped, another invocation holds the lock")
			return &DispatchResult{Success: true, Message: msgDispatchInProgress}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release dispatch lock", zap.Error(err))
			}
		}()
	}

	result, err := s.dispatch(ctx, logger)
	if err != nil {
		s.metrics.IncDispatch("error")
		logger.Error("newsletter dispatch failed", zap.Error(err))
		return nil, err
	}

	switch {
	case result.CampaignID == "":
		s.metrics.IncDispatch("noop")
	case result.Completed:
		s.metrics.IncDispatch("completed")
	default:
		s.metrics.IncDispatch("sent")
	}
	return result, nil
}

func (s *BatchDispatcher) dispatch(ctx context.Context, logger *zap.Logger) (*DispatchResult, error) {
	// The quota is reserved at this instant, so successful sends are stamped
	// with it rather than with their own, paced, send time.
	startedAt := s.now()

	snapshot, err := s.quota.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	s.metrics.SetQuotaRemaining(snapshot.Remaining)

	if snapshot.Remaining <= 0 {
		logger.Info("newsletter quota exhausted",
			zap.Int("limit", snapshot.Limit),
			zap.Int("sentInWindow", snapshot.SentInWindow),
		)
		return &DispatchResult{Success: true, Message: msgQuotaExhausted}, nil
	}

	campaign, err := s.campaigns.NextActive(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return &DispatchResult{
			Success:        true,
			Message:        msgNoActiveCampaign,
			QuotaRemaining: snapshot.Remaining,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select campaign: %w", err)
	}

	logger = logger.With(zap.String("campaignId", campaign.ID))

	result, err := s.advance(ctx, logger, campaign, snapshot, startedAt)
	if err != nil {
		s.markFailed(ctx, logger, campaign.ID, err)
		return nil, err
	}
	return result, nil
}

func (s *BatchDispatcher) advance(
	ctx context.Context,
	logger *zap.Logger,
	campaign *domain.Campaign,
	snapshot quota.Snapshot,
	startedAt time.Time,
) (*DispatchResult, error) {
	if campaign.Status == domain.CampaignStatusScheduled {
		moved, err := s.campaigns.MarkInProgress(ctx, campaign.ID, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to start campaign: %w", err)
		}
		if moved {
			campaign.Status = domain.CampaignStatusInProgress
			logger.Info("newsletter campaign started")
		}
	}

	post, err := s.posts.GetByID(ctx, campaign.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", campaign.PostID, err)
	}

	batch, err := s.recipients.ListQueued(ctx, campaign.ID, snapshot.Remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queued recipients: %w", err)
	}

	if len(batch) == 0 {
		now := s.now()
		completed, err := s.campaigns.Complete(ctx, campaign.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to complete campaign: %w", err)
		}
		recordAudit(ctx, s.audit, logger, domain.AuditActionNewsletterCompleted, campaign.ID, map[string]any{
			"sentCount":   completed.SentCount,
			"totalFailed": completed.TotalFailed,
		}, now)
		logger.Info("newsletter campaign completed, queue drained")

		return &DispatchResult{
			Success:        true,
			Message:        fmt.Sprintf("campaign %s completed", campaign.ID),
			CampaignID:     campaign.ID,
			Completed:      true,
			QuotaRemaining: snapshot.Remaining,
		}, nil
	}

	// Once sending starts every member of the batch is attempted and
	// recorded even if the caller goes away.
	sendCtx := context.WithoutCancel(ctx)
	outcomes := s.sendBatch(sendCtx, logger, campaign, post, batch, startedAt)

	now := s.now()
	updated, err := s.campaigns.RecordBatch(sendCtx, campaign.ID, outcomes, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record batch outcomes: %w", err)
	}

	sent, failed := domain.CountOutcomes(outcomes)
	quotaRemaining := quota.Remaining(snapshot.Limit, snapshot.SentInWindow+sent)
	s.metrics.SetQuotaRemaining(quotaRemaining)

	recordAudit(ctx, s.audit, logger, domain.AuditActionNewsletterBatchSent, campaign.ID, map[string]any{
		"batchSize": len(batch),
		"sent":      sent,
		"failed":    failed,
		"remaining": updated.QueuedCount,
	}, now)

	completed := updated.Status == domain.CampaignStatusCompleted
	if completed {
		recordAudit(ctx, s.audit, logger, domain.AuditActionNewsletterCompleted, campaign.ID, map[string]any{
			"sentCount":   updated.SentCount,
			"totalFailed": updated.TotalFailed,
		}, now)
	}

	logger.Info("newsletter batch dispatched",
		zap.Int("batchSize", len(batch)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("remaining", updated.QueuedCount),
		zap.Bool("completed", completed),
	)

	return &DispatchResult{
		Success:        true,
		Message:        fmt.Sprintf("sent %d, failed %d, %d remaining for campaign %s", sent, failed, updated.QueuedCount, campaign.ID),
		CampaignID:     campaign.ID,
		Sent:           sent,
		Failed:         failed,
		Remaining:      updated.QueuedCount,
		Completed:      completed,
		QuotaRemaining: quotaRemaining,
	}, nil
}

// sendBatch attempts every recipient concurrently. Each goroutine owns one
// slot of the result slice and never returns an error.
func (s *BatchDispatcher) sendBatch(
	ctx context.Context,
	logger *zap.Logger,
	campaign *domain.Campaign,
	post *domain.Post,
	batch []domain.Recipient,
	startedAt time.Time,
) []domain.DeliveryOutcome {
	outcomes := make([]domain.DeliveryOutcome, len(batch))

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i := range batch {
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, logger, campaign, post, batch[i], startedAt)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *BatchDispatcher) deliver(
	ctx context.Context,
	logger *zap.Logger,
	campaign *domain.Campaign,
	post *domain.Post,
	recipient domain.Recipient,
	startedAt time.Time,
) domain.DeliveryOutcome {
	fail := func(reason string, message string) domain.DeliveryOutcome {
		s.metrics.IncEmailFailed(reason)
		logger.Warn("newsletter send failed",
			zap.String("recipientId", recipient.ID),
			zap.String("reason", reason),
			zap.String("error", message),
		)
		return domain.DeliveryOutcome{RecipientID: recipient.ID, Error: message, At: s.now()}
	}

	token, err := s.subscribers.GetUnsubscribeToken(ctx, recipient.SubscriberID)
	if errors.Is(err, domain.ErrNotFound) {
		return fail("missing_token", msgMissingToken)
	}
	if err != nil {
		return fail("token_lookup", fmt.Sprintf("failed to load unsubscribe token: %v", err))
	}

	coverImage := ""
	if post.CoverImageURL != nil {
		coverImage = *post.CoverImageURL
	}
	html, err := s.renderer.Newsletter(render.NewsletterData{
		Title:          post.Title,
		Preview:        campaign.PreviewText,
		CoverImageURL:  coverImage,
		ReadMoreURL:    s.renderer.ReadMoreURL(post.Slug),
		UnsubscribeURL: s.renderer.UnsubscribeURL(token),
	})
	if err != nil {
		return fail("render", err.Error())
	}

	if err := s.rateLimiter.Wait(ctx, SendBucket); err != nil {
		return fail("rate_limited", fmt.Sprintf("rate limiter wait failed: %v", err))
	}

	start := time.Now()
	_, err = s.provider.Send(ctx, domain.Email{
		From:    s.from,
		To:      recipient.Email,
		Subject: campaign.Subject,
		HTML:    html,
	})
	s.metrics.ObserveSendDuration(time.Since(start))
	if err != nil {
		return fail(provider.FailureReason(err), err.Error())
	}

	s.metrics.IncEmailSent()
	return domain.DeliveryOutcome{RecipientID: recipient.ID, Sent: true, At: startedAt}
}

// markFailed is best effort: the invocation error is what gets reported.
func (s *BatchDispatcher) markFailed(ctx context.Context, logger *zap.Logger, campaignID string, cause error) {
	now := s.now()
	if err := s.campaigns.MarkFailed(context.WithoutCancel(ctx), campaignID, cause.Error(), now); err != nil {
		logger.Error("failed to mark newsletter campaign as failed",
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}

	recordAudit(ctx, s.audit, logger, domain.AuditActionNewsletterFailed, campaignID, map[string]any{
		"error": cause.Error(),
	}, now)
	logger.Warn("newsletter campaign marked failed", zap.Error(cause))
}
