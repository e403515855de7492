package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/quota"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

type CampaignInitiator interface {
	Initiate(ctx context.Context, postID string) (*service.InitiationResult, error)
}

type CampaignQueries interface {
	List(ctx context.Context, params repository.CampaignListParams) ([]domain.Campaign, int64, error)
	Get(ctx context.Context, id string) (*service.CampaignDetail, error)
}

type QuotaChecker interface {
	Check(ctx context.Context) (quota.Snapshot, error)
}

type SettingsUpdater interface {
	SetNewsletterDailyLimit(ctx context.Context, limit int) error
}

type AdminDeps struct {
	Initiator CampaignInitiator
	Queries   CampaignQueries
	Quota     QuotaChecker
	Settings  SettingsUpdater
	Logger    *zap.Logger
}

type AdminHandler struct {
	initiator CampaignInitiator
	queries   CampaignQueries
	quota     QuotaChecker
	settings  SettingsUpdater
	logger    *zap.Logger
}

func NewAdminHandler(deps AdminDeps) (*AdminHandler, error) {
	if deps.Initiator == nil || deps.Queries == nil || deps.Quota == nil || deps.Settings == nil {
		return nil, fmt.Errorf("initiator, queries, quota and settings are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AdminHandler{
		initiator: deps.Initiator,
		queries:   deps.Queries,
		quota:     deps.Quota,
		settings:  deps.Settings,
		logger:    logger,
	}, nil
}

func RegisterAdminRoutes(router fiber.Router, token string, deps AdminDeps) error {
	h, err := NewAdminHandler(deps)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", BearerAuth(token))
	v1.Post("/posts/:postId/newsletter", h.InitiateNewsletter)
	v1.Get("/campaigns", h.ListCampaigns)
	v1.Get("/campaigns/:id", h.GetCampaign)
	v1.Get("/newsletter/quota", h.GetQuota)
	v1.Put("/settings/newsletter-daily-limit", h.SetDailyLimit)

	return nil
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type campaignResponse struct {
	ID              string     `json:"id"`
	PostID          string     `json:"postId"`
	Subject         string     `json:"subject"`
	PreviewText     string     `json:"previewText"`
	Status          string     `json:"status"`
	TotalRecipients int        `json:"totalRecipients"`
	SentCount       int        `json:"sentCount"`
	QueuedCount     int        `json:"queuedCount"`
	TotalFailed     int        `json:"totalFailed"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type campaignDetailResponse struct {
	campaignResponse
	Recipients []recipientCountItem `json:"recipients"`
}

type recipientCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type listCampaignsResponse struct {
	Data []campaignResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type quotaResponse struct {
	Limit        int       `json:"limit"`
	SentInWindow int       `json:"sentInWindow"`
	Remaining    int       `json:"remaining"`
	WindowStart  time.Time `json:"windowStart"`
}

type dailyLimitRequest struct {
	Limit *int `json:"limit"`
}

// InitiateNewsletter answers with {success, message} for every outcome so the
// admin UI can show the message as is.
func (h *AdminHandler) InitiateNewsletter(c *fiber.Ctx) error {
	postID := strings.TrimSpace(c.Params("postId"))

	result, err := h.initiator.Initiate(requestContext(c), postID)
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(actionResponse{Success: true, Message: result.Message})
	}

	status, message := initiationFailure(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("newsletter initiation failed",
			zap.String("postId", postID),
			zap.String("requestId", requestID(c)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(actionResponse{Success: false, Message: message})
}

func initiationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, "Post id is required"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "Post not found"
	case errors.Is(err, domain.ErrPostAlreadySent):
		return fiber.StatusConflict, "Newsletter already sent for this post"
	case errors.Is(err, domain.ErrNoRecipients):
		return fiber.StatusUnprocessableEntity, "No subscribers to send to"
	default:
		return fiber.StatusInternalServerError, "Failed to schedule newsletter"
	}
}

func (h *AdminHandler) ListCampaigns(c *fiber.Ctx) error {
	params, err := parseCampaignListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	campaigns, total, err := h.queries.List(requestContext(c), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		data = append(data, toCampaignResponse(&campaigns[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listCampaignsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *AdminHandler) GetCampaign(c *fiber.Ctx) error {
	detail, err := h.queries.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	counts := make([]recipientCountItem, 0, len(detail.Counts))
	for _, count := range detail.Counts {
		counts = append(counts, recipientCountItem{Status: count.Status.String(), Count: count.Count})
	}

	return c.Status(fiber.StatusOK).JSON(campaignDetailResponse{
		campaignResponse: toCampaignResponse(detail.Campaign),
		Recipients:       counts,
	})
}

func (h *AdminHandler) GetQuota(c *fiber.Ctx) error {
	snapshot, err := h.quota.Check(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(quotaResponse{
		Limit:        snapshot.Limit,
		SentInWindow: snapshot.SentInWindow,
		Remaining:    snapshot.Remaining,
		WindowStart:  snapshot.WindowStart,
	})
}

func (h *AdminHandler) SetDailyLimit(c *fiber.Ctx) error {
	var req dailyLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Limit == nil {
		return fiber.NewError(fiber.StatusBadRequest, "limit is required")
	}

	if err := h.settings.SetNewsletterDailyLimit(requestContext(c), *req.Limit); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"limit": *req.Limit})
}

func parseCampaignListParams(c *fiber.Ctx) (repository.CampaignListParams, error) {
	params := repository.CampaignListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.CampaignListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.CampaignListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseCampaignStatusFromString(rawStatus)
		if err != nil {
			return repository.CampaignListParams{}, err
		}
		params.Status = &status
	}
	if postID := strings.TrimSpace(c.Query("postId")); postID != "" {
		params.PostID = &postID
	}

	return params, nil
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	if c == nil {
		return campaignResponse{}
	}

	return campaignResponse{
		ID:              c.ID,
		PostID:          c.PostID,
		Subject:         c.Subject,
		PreviewText:     c.PreviewText,
		Status:          c.Status.String(),
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		QueuedCount:     c.QueuedCount,
		TotalFailed:     c.TotalFailed,
		ErrorMessage:    c.ErrorMessage,
		ScheduledAt:     c.ScheduledAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}
}
