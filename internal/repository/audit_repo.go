package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormAuditRepo struct {
	db *gorm.DB
}

func NewGormAuditRepo(db *gorm.DB) *GormAuditRepo {
	return &GormAuditRepo{db: db}
}

func (r *GormAuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	model := auditModelFromDomain(entry)
	if model == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&AuditLogModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
