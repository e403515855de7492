package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

const recipientInsertChunk = 500

type RecipientStatusCount struct {
	Status domain.RecipientStatus `gorm:"column:status"`
	Count  int                    `gorm:"column:count"`
}

type RecipientRepository interface {
	CreateBatch(ctx context.Context, recipients []*domain.Recipient) error
	ListQueued(ctx context.Context, campaignID string, limit int) ([]domain.Recipient, error)
	UpdateOutcome(ctx context.Context, campaignID string, outcome domain.DeliveryOutcome) (bool, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
	CountByStatus(ctx context.Context, campaignID string) ([]RecipientStatusCount, error)
}

type GormRecipientRepo struct {
	db *gorm.DB
}

func NewGormRecipientRepo(db *gorm.DB) *GormRecipientRepo {
	return &GormRecipientRepo{db: db}
}

func (r *GormRecipientRepo) CreateBatch(ctx context.Context, recipients []*domain.Recipient) error {
	models := make([]RecipientModel, 0, len(recipients))
	modelIndexes := make([]int, 0, len(recipients))
	for i, rec := range recipients {
		model := recipientModelFromDomain(rec)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, recipientInsertChunk).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		*recipients[idx] = *recipientModelToDomain(&models[i])
	}

	return nil
}

// ListQueued returns up to limit queued recipients in insertion order.
func (r *GormRecipientRepo) ListQueued(ctx context.Context, campaignID string, limit int) ([]domain.Recipient, error) {
	if limit <= 0 {
		return nil, nil
	}

	var models []RecipientModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.RecipientStatusQueued).
		Order("position ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}

	return recipients, nil
}

// UpdateOutcome moves one queued recipient to sent or failed. It reports false
// when the recipient had already left the queued state.
func (r *GormRecipientRepo) UpdateOutcome(ctx context.Context, campaignID string, outcome domain.DeliveryOutcome) (bool, error) {
	return updateRecipientOutcome(r.db.WithContext(ctx), campaignID, outcome)
}

func (r *GormRecipientRepo) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("status = ? AND sent_at >= ?", domain.RecipientStatusSent, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormRecipientRepo) CountByStatus(ctx context.Context, campaignID string) ([]RecipientStatusCount, error) {
	var counts []RecipientStatusCount
	err := countRecipientsByStatus(r.db.WithContext(ctx), campaignID).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func updateRecipientOutcome(db *gorm.DB, campaignID string, outcome domain.DeliveryOutcome) (bool, error) {
	updates := map[string]any{
		"status": outcome.Status(),
	}
	if outcome.Sent {
		updates["sent_at"] = outcome.At
	} else {
		updates["error_message"] = outcome.Error
	}

	result := db.
		Model(&RecipientModel{}).
		Where("id = ? AND campaign_id = ? AND status = ?", outcome.RecipientID, campaignID, domain.RecipientStatusQueued).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func countRecipientsByStatus(db *gorm.DB, campaignID string) *gorm.DB {
	return db.
		Model(&RecipientModel{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status")
}
