package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SettingNewsletterDailyLimit  = "newsletter_daily_limit"
	SettingAuditLogRetentionDays = "audit_log_retention_days"
)

type SettingsRepository interface {
	GetInt(ctx context.Context, key string) (int, bool, error)
	SetInt(ctx context.Context, key string, value int) error
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// GetInt reports found=false when the setting has never been stored.
func (r *GormSettingsRepo) GetInt(ctx context.Context, key string) (int, bool, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	value, err := strconv.Atoi(strings.TrimSpace(model.Value))
	if err != nil {
		return 0, false, fmt.Errorf("%w: setting %q is not an integer: %q", domain.ErrValidation, key, model.Value)
	}
	return value, true, nil
}

func (r *GormSettingsRepo) SetInt(ctx context.Context, key string, value int) error {
	model := SettingModel{
		Key:       key,
		Value:     strconv.Itoa(value),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
}
