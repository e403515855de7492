package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignListParams struct {
	Status   *domain.CampaignStatus
	PostID   *string
	Page     int
	PageSize int
}

type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, params CampaignListParams) ([]domain.Campaign, int64, error)
	NextActive(ctx context.Context) (*domain.Campaign, error)
	MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error)
	Complete(ctx context.Context, id string, at time.Time) (*domain.Campaign, error)
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
	RecordBatch(ctx context.Context, id string, outcomes []domain.DeliveryOutcome, at time.Time) (*domain.Campaign, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if model == nil {
		return fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %w", domain.ErrPostAlreadySent, err)
		}
		return err
	}
	*c = *campaignModelToDomain(model)
	return nil
}

// Delete removes a campaign together with its recipient rows (FK cascade).
// It is only used to compensate a failed initiation.
func (r *GormCampaignRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&CampaignModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) List(ctx context.Context, params CampaignListParams) ([]domain.Campaign, int64, error) {
	query := r.db.WithContext(ctx).Model(&CampaignModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PostID != nil {
		query = query.Where("post_id = ?", *params.PostID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	pageSize = min(pageSize, 100)

	var models []CampaignModel
	err := query.
		Order("scheduled_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, total, nil
}

// NextActive returns the oldest campaign that still has dispatch work.
func (r *GormCampaignRepo) NextActive(ctx context.Context) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", domain.ActiveCampaignStatuses()).
		Order("scheduled_at ASC").
		Order("id ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

// MarkInProgress performs the first-touch transition. It reports false when the
// campaign was no longer scheduled.
func (r *GormCampaignRepo) MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignStatusScheduled).
		Updates(map[string]any{
			"status":     domain.CampaignStatusInProgress,
			"started_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Complete closes a drained campaign. The counters are rebuilt from the
// recipient rows so the stored totals balance even if they had drifted.
func (r *GormCampaignRepo) Complete(ctx context.Context, id string, at time.Time) (*domain.Campaign, error) {
	var completed CampaignModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := lockActiveCampaign(tx, id)
		if err != nil {
			return err
		}

		var counts []RecipientStatusCount
		if err := countRecipientsByStatus(tx, id).Scan(&counts).Error; err != nil {
			return err
		}
		tally := make(map[domain.RecipientStatus]int, len(counts))
		for _, c := range counts {
			tally[c.Status] += c.Count
		}
		if queued := tally[domain.RecipientStatusQueued]; queued > 0 {
			return fmt.Errorf("%w: campaign %s still has %d queued recipients", domain.ErrConflict, id, queued)
		}

		completedAt := at
		model.SentCount = tally[domain.RecipientStatusSent]
		model.TotalFailed = tally[domain.RecipientStatusFailed]
		model.QueuedCount = 0
		model.TotalRecipients = model.SentCount + model.TotalFailed
		model.Status = domain.CampaignStatusCompleted
		model.CompletedAt = &completedAt
		model.UpdatedAt = at

		err = tx.Model(&CampaignModel{}).Where("id = ?", id).Updates(map[string]any{
			"status":           model.Status,
			"sent_count":       model.SentCount,
			"total_failed":     model.TotalFailed,
			"queued_count":     0,
			"total_recipients": model.TotalRecipients,
			"completed_at":     completedAt,
			"updated_at":       at,
		}).Error
		if err != nil {
			return err
		}

		completed = *model
		return nil
	})
	if err != nil {
		return nil, err
	}

	return campaignModelToDomain(&completed), nil
}

func (r *GormCampaignRepo) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status IN ?", id, domain.ActiveCampaignStatuses()).
		Updates(map[string]any{
			"status":        domain.CampaignStatusFailed,
			"error_message": reason,
			"updated_at":    at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RecordBatch applies every delivery outcome and the matching counter changes
// in one transaction. Outcomes for recipients that are no longer queued are
// skipped so a replayed batch cannot be counted twice.
func (r *GormCampaignRepo) RecordBatch(
	ctx context.Context,
	id string,
	outcomes []domain.DeliveryOutcome,
	at time.Time,
) (*domain.Campaign, error) {
	var updated CampaignModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := lockActiveCampaign(tx, id)
		if err != nil {
			return err
		}

		sent, failed := 0, 0
		for _, outcome := range outcomes {
			applied, err := updateRecipientOutcome(tx, id, outcome)
			if err != nil {
				return fmt.Errorf("failed to record outcome for recipient %s: %w", outcome.RecipientID, err)
			}
			if !applied {
				continue
			}
			if outcome.Sent {
				sent++
			} else {
				failed++
			}
		}

		model.SentCount += sent
		model.TotalFailed += failed
		model.QueuedCount = max(model.QueuedCount-(sent+failed), 0)
		model.UpdatedAt = at

		updates := map[string]any{
			"sent_count":   model.SentCount,
			"total_failed": model.TotalFailed,
			"queued_count": model.QueuedCount,
			"updated_at":   at,
		}
		if model.QueuedCount == 0 {
			completedAt := at
			model.Status = domain.CampaignStatusCompleted
			model.CompletedAt = &completedAt
			updates["status"] = model.Status
			updates["completed_at"] = completedAt
		}

		if err := tx.Model(&CampaignModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		updated = *model
		return nil
	})
	if err != nil {
		return nil, err
	}

	return campaignModelToDomain(&updated), nil
}

// lockActiveCampaign reads the campaign row FOR UPDATE and rejects terminal ones.
func lockActiveCampaign(tx *gorm.DB, id string) (*CampaignModel, error) {
	var model CampaignModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if model.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: campaign %s is %s", domain.ErrConflict, id, model.Status)
	}
	return &model, nil
}
