package repository

import (
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

// CampaignModel is the persistence model for the newsletter_campaigns table.
type CampaignModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	PostID          string                `gorm:"type:uuid;not null"`
	Subject         string                `gorm:"type:varchar(255);not null"`
	PreviewText     string                `gorm:"type:text;not null;default:''"`
	TotalRecipients int                   `gorm:"not null"`
	SentCount       int                   `gorm:"not null;default:0"`
	QueuedCount     int                   `gorm:"not null"`
	TotalFailed     int                   `gorm:"not null;default:0"`
	Status          domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage    *string               `gorm:"type:text"`
	ScheduledAt     time.Time             `gorm:"type:timestamptz;not null"`
	StartedAt       *time.Time            `gorm:"type:timestamptz"`
	CompletedAt     *time.Time            `gorm:"type:timestamptz"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CampaignModel) TableName() string {
	return "newsletter_campaigns"
}

// RecipientModel is the persistence model for newsletter_recipients.
type RecipientModel struct {
	ID           string                 `gorm:"type:uuid;primaryKey"`
	CampaignID   string                 `gorm:"type:uuid;not null"`
	SubscriberID string                 `gorm:"type:uuid;not null"`
	Email        string                 `gorm:"type:varchar(320);not null"`
	Position     int                    `gorm:"not null"`
	Status       domain.RecipientStatus `gorm:"type:varchar(20);not null"`
	SentAt       *time.Time             `gorm:"type:timestamptz"`
	ErrorMessage *string                `gorm:"type:text"`
	CreatedAt    time.Time
}

func (RecipientModel) TableName() string {
	return "newsletter_recipients"
}

// SubscriberModel maps the subscribers table owned by the subscription flow.
type SubscriberModel struct {
	ID               string                  `gorm:"type:uuid;primaryKey"`
	Email            string                  `gorm:"type:varchar(320);not null;uniqueIndex"`
	Status           domain.SubscriberStatus `gorm:"type:varchar(20);not null"`
	UnsubscribeToken *string                 `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (SubscriberModel) TableName() string {
	return "subscribers"
}

// PostModel maps the posts table owned by the editor.
type PostModel struct {
	ID               string     `gorm:"type:uuid;primaryKey"`
	Title            string     `gorm:"type:varchar(255);not null"`
	Slug             string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	Excerpt          *string    `gorm:"type:text"`
	Content          string     `gorm:"type:jsonb;not null;default:'{}'"`
	CoverImageURL    *string    `gorm:"type:text"`
	PublishedAt      *time.Time `gorm:"type:timestamptz"`
	NewsletterSentAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PostModel) TableName() string {
	return "posts"
}

// SettingModel stores operator-tunable values as text keyed by name.
type SettingModel struct {
	Key       string `gorm:"type:varchar(100);primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (SettingModel) TableName() string {
	return "settings"
}

// AuditLogModel is the persistence model for audit_logs.
type AuditLogModel struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Action     string         `gorm:"type:varchar(100);not null"`
	EntityType string         `gorm:"type:varchar(50);not null"`
	EntityID   string         `gorm:"type:varchar(64);not null"`
	Details    map[string]any `gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:              c.ID,
		PostID:          c.PostID,
		Subject:         c.Subject,
		PreviewText:     c.PreviewText,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		QueuedCount:     c.QueuedCount,
		TotalFailed:     c.TotalFailed,
		Status:          c.Status,
		ErrorMessage:    c.ErrorMessage,
		ScheduledAt:     c.ScheduledAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:              m.ID,
		PostID:          m.PostID,
		Subject:         m.Subject,
		PreviewText:     m.PreviewText,
		TotalRecipients: m.TotalRecipients,
		SentCount:       m.SentCount,
		QueuedCount:     m.QueuedCount,
		TotalFailed:     m.TotalFailed,
		Status:          m.Status,
		ErrorMessage:    m.ErrorMessage,
		ScheduledAt:     m.ScheduledAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func recipientModelFromDomain(r *domain.Recipient) *RecipientModel {
	if r == nil {
		return nil
	}

	return &RecipientModel{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		SubscriberID: r.SubscriberID,
		Email:        r.Email,
		Position:     r.Position,
		Status:       r.Status,
		SentAt:       r.SentAt,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
	}
}

func recipientModelToDomain(m *RecipientModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		ID:           m.ID,
		CampaignID:   m.CampaignID,
		SubscriberID: m.SubscriberID,
		Email:        m.Email,
		Position:     m.Position,
		Status:       m.Status,
		SentAt:       m.SentAt,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
	}
}

func subscriberModelToDomain(m *SubscriberModel) *domain.Subscriber {
	if m == nil {
		return nil
	}

	return &domain.Subscriber{
		ID:               m.ID,
		Email:            m.Email,
		Status:           m.Status,
		UnsubscribeToken: m.UnsubscribeToken,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func postModelToDomain(m *PostModel) *domain.Post {
	if m == nil {
		return nil
	}

	return &domain.Post{
		ID:               m.ID,
		Title:            m.Title,
		Slug:             m.Slug,
		Excerpt:          m.Excerpt,
		Content:          m.Content,
		CoverImageURL:    m.CoverImageURL,
		PublishedAt:      m.PublishedAt,
		NewsletterSentAt: m.NewsletterSentAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func auditModelFromDomain(e *domain.AuditEntry) *AuditLogModel {
	if e == nil {
		return nil
	}

	return &AuditLogModel{
		ID:         e.ID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}
