package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	MarkNewsletterSent(ctx context.Context, id string, at time.Time) error
}

type GormPostRepo struct {
	db *gorm.DB
}

func NewGormPostRepo(db *gorm.DB) *GormPostRepo {
	return &GormPostRepo{db: db}
}

func (r *GormPostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var model PostModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return postModelToDomain(&model), nil
}

// MarkNewsletterSent sets the post's newsletter marker once. A marker that is
// already set yields ErrPostAlreadySent.
func (r *GormPostRepo) MarkNewsletterSent(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&PostModel{}).
		Where("id = ? AND newsletter_sent_at IS NULL", id).
		Updates(map[string]any{
			"newsletter_sent_at": at,
			"updated_at":         at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPostAlreadySent
	}
	return nil
}
