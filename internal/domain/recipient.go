package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecipientStatus represents the delivery state of one recipient record.
type RecipientStatus string

const (
	RecipientStatusQueued RecipientStatus = "queued"
	RecipientStatusSent   RecipientStatus = "sent"
	RecipientStatusFailed RecipientStatus = "failed"
)

func (s RecipientStatus) String() string { return string(s) }

func (s RecipientStatus) IsValid() bool {
	switch s {
	case RecipientStatusQueued, RecipientStatusSent, RecipientStatusFailed:
		return true
	}
	return false
}

func ParseRecipientStatusFromString(s string) (RecipientStatus, error) {
	st := RecipientStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid recipient status %q", ErrValidation, s)
	}
	return st, nil
}

// Recipient is one subscriber's delivery attempt within a campaign.
// Email is copied from the subscriber when the campaign is initiated and
// Position fixes the draining order.
type Recipient struct {
	ID           string
	CampaignID   string
	SubscriberID string
	Email        string
	Position     int
	Status       RecipientStatus
	SentAt       *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
}

// DeliveryOutcome is the result of one send attempt, applied to a queued recipient.
type DeliveryOutcome struct {
	RecipientID string
	Sent        bool
	Error       string
	At          time.Time
}

// Status maps the outcome onto the terminal recipient status.
func (o DeliveryOutcome) Status() RecipientStatus {
	if o.Sent {
		return RecipientStatusSent
	}
	return RecipientStatusFailed
}

// CountOutcomes splits outcomes into successes and failures.
func CountOutcomes(outcomes []DeliveryOutcome) (sent int, failed int) {
	for _, o := range outcomes {
		if o.Sent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}
