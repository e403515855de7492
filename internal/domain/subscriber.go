package domain

import "time"

// SubscriberStatus is owned by the subscription flow; only subscribed
// subscribers are eligible when a campaign is initiated.
type SubscriberStatus string

const (
	SubscriberStatusSubscribed   SubscriberStatus = "subscribed"
	SubscriberStatusUnverified   SubscriberStatus = "unverified"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
)

func (s SubscriberStatus) String() string { return string(s) }

type Subscriber struct {
	ID               string
	Email            string
	Status           SubscriberStatus
	UnsubscribeToken *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
