package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a newsletter campaign.
type CampaignStatus string

const (
	CampaignStatusScheduled  CampaignStatus = "scheduled"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusScheduled, CampaignStatusInProgress, CampaignStatusCompleted, CampaignStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further dispatch work happens in this state.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// ActiveCampaignStatuses are the states the dispatcher drains.
func ActiveCampaignStatuses() []CampaignStatus {
	return []CampaignStatus{CampaignStatusScheduled, CampaignStatusInProgress}
}

// Campaign is one newsletter send-out for one post.
type Campaign struct {
	ID              string
	PostID          string
	Subject         string
	PreviewText     string
	TotalRecipients int
	SentCount       int
	QueuedCount     int
	TotalFailed     int
	Status          CampaignStatus
	ErrorMessage    *string
	ScheduledAt     time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balanced reports whether the delivery counters add up to the recipient total.
func (c *Campaign) Balanced() bool {
	if c == nil {
		return false
	}
	return c.SentCount+c.QueuedCount+c.TotalFailed == c.TotalRecipients
}

// NewScheduledCampaign builds a campaign whose whole audience is still queued.
func NewScheduledCampaign(id string, post *Post, preview string, recipients int, now time.Time) (*Campaign, error) {
	if post == nil {
		return nil, fmt.Errorf("%w: post is required", ErrValidation)
	}
	if recipients <= 0 {
		return nil, ErrNoRecipients
	}

	return &Campaign{
		ID:              id,
		PostID:          post.ID,
		Subject:         strings.TrimSpace(post.Title),
		PreviewText:     preview,
		TotalRecipients: recipients,
		QueuedCount:     recipients,
		Status:          CampaignStatusScheduled,
		ScheduledAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
