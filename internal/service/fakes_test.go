package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/quota"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryLedger is an in-memory stand-in for the postgres repositories with the
// same conditional-update semantics.
type memoryLedger struct {
	mu sync.Mutex

	posts       map[string]*domain.Post
	subscribers []domain.Subscriber
	tokens      map[string]string
	campaigns   map[string]*domain.Campaign
	recipients  map[string][]*domain.Recipient
	audit       []domain.AuditEntry

	createBatchErr  error
	markSentErr     error
	getPostErr      error
	nextActiveErr   error
	deleteOlderFn   func(cutoff time.Time) (int64, error)
	campaignWrites  map[string]int
	recipientWrites map[string]int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		posts:           make(map[string]*domain.Post),
		tokens:          make(map[string]string),
		campaigns:       make(map[string]*domain.Campaign),
		recipients:      make(map[string][]*domain.Recipient),
		campaignWrites:  make(map[string]int),
		recipientWrites: make(map[string]int),
	}
}

func (l *memoryLedger) addPost(id string) *domain.Post {
	l.mu.Lock()
	defer l.mu.Unlock()

	publishedAt := testEpoch.Add(-time.Hour)
	post := &domain.Post{
		ID:          id,
		Title:       "Post " + id,
		Slug:        "post-" + id,
		Content:     `{"blocks":[{"type":"paragraph","data":{"text":"Body of ` + id + `"}}]}`,
		PublishedAt: &publishedAt,
		CreatedAt:   testEpoch.Add(-2 * time.Hour),
		UpdatedAt:   testEpoch.Add(-2 * time.Hour),
	}
	l.posts[id] = post
	return post
}

func (l *memoryLedger) addSubscribers(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sub-%04d", len(l.subscribers))
		l.subscribers = append(l.subscribers, domain.Subscriber{
			ID:     id,
			Email:  id + "@example.com",
			Status: domain.SubscriberStatusSubscribed,
		})
		l.tokens[id] = "token-" + id
	}
}

func (l *memoryLedger) campaign(id string) domain.Campaign {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.campaigns[id]
}

func (l *memoryLedger) campaignCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.campaigns)
}

func (l *memoryLedger) recipientsOf(campaignID string) []domain.Recipient {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Recipient, 0, len(l.recipients[campaignID]))
	for _, r := range l.recipients[campaignID] {
		out = append(out, *r)
	}
	return out
}

func (l *memoryLedger) auditActions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	actions := make([]string, 0, len(l.audit))
	for _, entry := range l.audit {
		actions = append(actions, entry.Action)
	}
	return actions
}

// posts

func (l *memoryLedger) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.getPostErr != nil {
		return nil, l.getPostErr
	}
	post, ok := l.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *post
	return &copied, nil
}

func (l *memoryLedger) MarkNewsletterSent(ctx context.Context, id string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.markSentErr != nil {
		return l.markSentErr
	}
	post, ok := l.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if post.NewsletterSentAt != nil {
		return domain.ErrPostAlreadySent
	}
	post.NewsletterSentAt = &at
	return nil
}

// subscribers

func (l *memoryLedger) ListSubscribed(ctx context.Context) ([]domain.Subscriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Subscriber, 0, len(l.subscribers))
	for _, s := range l.subscribers {
		if s.Status == domain.SubscriberStatusSubscribed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *memoryLedger) GetUnsubscribeToken(ctx context.Context, subscriberID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := strings.TrimSpace(l.tokens[subscriberID])
	if token == "" {
		return "", domain.ErrNotFound
	}
	return token, nil
}

// audit

func (l *memoryLedger) Create(ctx context.Context, entry *domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audit = append(l.audit, *entry)
	return nil
}

func (l *memoryLedger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if l.deleteOlderFn != nil {
		return l.deleteOlderFn(cutoff)
	}
	return 0, nil
}

// campaigns and recipients; wrapped so method names do not collide with posts.

type campaignStore struct{ *memoryLedger }

func (s campaignStore) Create(ctx context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.campaigns {
		if existing.PostID == c.PostID && existing.Status != domain.CampaignStatusFailed {
			return domain.ErrPostAlreadySent
		}
	}
	copied := *c
	s.campaigns[c.ID] = &copied
	s.campaignWrites[c.ID]++
	return nil
}

func (s campaignStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.campaigns, id)
	delete(s.recipients, id)
	return nil
}

func (s campaignStore) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s campaignStore) List(ctx context.Context, params repository.CampaignListParams) ([]domain.Campaign, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if params.Status != nil && c.Status != *params.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (s campaignStore) NextActive(ctx context.Context) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextActiveErr != nil {
		return nil, s.nextActiveErr
	}

	var next *domain.Campaign
	for _, c := range s.campaigns {
		if c.Status.IsTerminal() {
			continue
		}
		if next == nil || c.ScheduledAt.Before(next.ScheduledAt) ||
			(c.ScheduledAt.Equal(next.ScheduledAt) && c.ID < next.ID) {
			next = c
		}
	}
	if next == nil {
		return nil, domain.ErrNotFound
	}
	copied := *next
	return &copied, nil
}

func (s campaignStore) MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok || c.Status != domain.CampaignStatusScheduled {
		return false, nil
	}
	c.Status = domain.CampaignStatusInProgress
	c.StartedAt = &at
	s.campaignWrites[id]++
	return true, nil
}

func (s campaignStore) Complete(ctx context.Context, id string, at time.Time) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status.IsTerminal() {
		return nil, domain.ErrConflict
	}

	tally := map[domain.RecipientStatus]int{}
	for _, r := range s.recipients[id] {
		tally[r.Status]++
	}
	if tally[domain.RecipientStatusQueued] > 0 {
		return nil, domain.ErrConflict
	}

	c.Status = domain.CampaignStatusCompleted
	c.SentCount = tally[domain.RecipientStatusSent]
	c.TotalFailed = tally[domain.RecipientStatusFailed]
	c.QueuedCount = 0
	c.TotalRecipients = c.SentCount + c.TotalFailed
	c.CompletedAt = &at
	s.campaignWrites[id]++

	copied := *c
	return &copied, nil
}

func (s campaignStore) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok || c.Status.IsTerminal() {
		return domain.ErrConflict
	}
	c.Status = domain.CampaignStatusFailed
	c.ErrorMessage = &reason
	s.campaignWrites[id]++
	return nil
}

func (s campaignStore) RecordBatch(ctx context.Context, id string, outcomes []domain.DeliveryOutcome, at time.Time) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status.IsTerminal() {
		return nil, domain.ErrConflict
	}

	sent, failed := 0, 0
	for _, outcome := range outcomes {
		if !s.applyOutcome(id, outcome) {
			continue
		}
		if outcome.Sent {
			sent++
		} else {
			failed++
		}
	}

	c.SentCount += sent
	c.TotalFailed += failed
	c.QueuedCount = max(c.QueuedCount-(sent+failed), 0)
	if c.QueuedCount == 0 {
		c.Status = domain.CampaignStatusCompleted
		c.CompletedAt = &at
	}
	s.campaignWrites[id]++

	copied := *c
	return &copied, nil
}

// applyOutcome requires the caller to hold the lock.
func (l *memoryLedger) applyOutcome(campaignID string, outcome domain.DeliveryOutcome) bool {
	for _, r := range l.recipients[campaignID] {
		if r.ID != outcome.RecipientID || r.Status != domain.RecipientStatusQueued {
			continue
		}
		r.Status = outcome.Status()
		if outcome.Sent {
			at := outcome.At
			r.SentAt = &at
		} else {
			msg := outcome.Error
			r.ErrorMessage = &msg
		}
		l.recipientWrites[campaignID]++
		return true
	}
	return false
}

type recipientStore struct{ *memoryLedger }

func (s recipientStore) CreateBatch(ctx context.Context, recipients []*domain.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createBatchErr != nil {
		return s.createBatchErr
	}
	for _, r := range recipients {
		copied := *r
		s.recipients[r.CampaignID] = append(s.recipients[r.CampaignID], &copied)
	}
	return nil
}

func (s recipientStore) ListQueued(ctx context.Context, campaignID string, limit int) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := make([]domain.Recipient, 0)
	for _, r := range s.recipients[campaignID] {
		if r.Status == domain.RecipientStatusQueued {
			queued = append(queued, *r)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].Position < queued[j].Position })
	if len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}

func (s recipientStore) UpdateOutcome(ctx context.Context, campaignID string, outcome domain.DeliveryOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyOutcome(campaignID, outcome), nil
}

func (s recipientStore) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, list := range s.recipients {
		for _, r := range list {
			if r.Status == domain.RecipientStatusSent && r.SentAt != nil && !r.SentAt.Before(since) {
				n++
			}
		}
	}
	return n, nil
}

func (s recipientStore) CountByStatus(ctx context.Context, campaignID string) ([]repository.RecipientStatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.RecipientStatus]int)
	for _, r := range s.recipients[campaignID] {
		counts[r.Status]++
	}
	out := make([]repository.RecipientStatusCount, 0, len(counts))
	for _, status := range []domain.RecipientStatus{domain.RecipientStatusQueued, domain.RecipientStatusSent, domain.RecipientStatusFailed} {
		if counts[status] > 0 {
			out = append(out, repository.RecipientStatusCount{Status: status, Count: counts[status]})
		}
	}
	return out, nil
}

// ledgerQuota applies the rolling window against the ledger using the test clock.
type ledgerQuota struct {
	limit  int
	ledger *memoryLedger
	clock  *testClock
	err    error
}

func (q *ledgerQuota) Check(ctx context.Context) (quota.Snapshot, error) {
	if q.err != nil {
		return quota.Snapshot{}, q.err
	}
	windowStart := quota.WindowStart(q.clock.Now())
	sent, err := recipientStore{q.ledger}.CountSentSince(ctx, windowStart)
	if err != nil {
		return quota.Snapshot{}, err
	}
	return quota.Snapshot{
		Limit:        q.limit,
		SentInWindow: int(sent),
		Remaining:    quota.Remaining(q.limit, int(sent)),
		WindowStart:  windowStart,
	}, nil
}

type fakeProvider struct {
	calls  atomic.Int64
	sendFn func(ctx context.Context, email domain.Email) (*provider.SendResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, email domain.Email) (*provider.SendResponse, error) {
	f.calls.Add(1)
	if f.sendFn != nil {
		return f.sendFn(ctx, email)
	}
	return &provider.SendResponse{StatusCode: 200}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, bucket string) (bool, error)
	waitFn  func(ctx context.Context, bucket string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, bucket)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, bucket string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, bucket)
	}
	return nil
}

type fakeLock struct {
	acquireFn func(ctx context.Context) (func(context.Context) error, bool, error)
}

func (f *fakeLock) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	return f.acquireFn(ctx)
}

type fakeSettingsRepo struct {
	getIntFn func(ctx context.Context, key string) (int, bool, error)
	setIntFn func(ctx context.Context, key string, value int) error
}

func (f *fakeSettingsRepo) GetInt(ctx context.Context, key string) (int, bool, error) {
	if f.getIntFn != nil {
		return f.getIntFn(ctx, key)
	}
	return 0, false, nil
}

func (f *fakeSettingsRepo) SetInt(ctx context.Context, key string, value int) error {
	if f.setIntFn != nil {
		return f.setIntFn(ctx, key, value)
	}
	return nil
}
