package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

type SubscriberRepository interface {
	ListSubscribed(ctx context.Context) ([]domain.Subscriber, error)
	GetUnsubscribeToken(ctx context.Context, subscriberID string) (string, error)
}

type GormSubscriberRepo struct {
	db *gorm.DB
}

func NewGormSubscriberRepo(db *gorm.DB) *GormSubscriberRepo {
	return &GormSubscriberRepo{db: db}
}

// ListSubscribed returns the current audience ordered by sign-up time.
func (r *GormSubscriberRepo) ListSubscribed(ctx context.Context) ([]domain.Subscriber, error) {
	var models []SubscriberModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.SubscriberStatusSubscribed).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	subscribers := make([]domain.Subscriber, 0, len(models))
	for i := range models {
		subscribers = append(subscribers, *subscriberModelToDomain(&models[i]))
	}

	return subscribers, nil
}

func (r *GormSubscriberRepo) GetUnsubscribeToken(ctx context.Context, subscriberID string) (string, error) {
	var model SubscriberModel
	err := r.db.WithContext(ctx).
		Select("id", "unsubscribe_token").
		First(&model, "id = ?", subscriberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if model.UnsubscribeToken == nil || strings.TrimSpace(*model.UnsubscribeToken) == "" {
		return "", domain.ErrNotFound
	}
	return *model.UnsubscribeToken, nil
}
