package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
)

type NewsletterJob interface {
	Run(ctx context.Context) (*service.JobResult, error)
}

type CronHandler struct {
	job NewsletterJob
}

type newsletterStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type cronResponse struct {
	Newsletter  newsletterStatus `json:"newsletter"`
	Maintenance string           `json:"maintenance"`
}

func NewCronHandler(job NewsletterJob) (*CronHandler, error) {
	if job == nil {
		return nil, fmt.Errorf("newsletter job is required")
	}
	return &CronHandler{job: job}, nil
}

// RegisterCronRoutes mounts the external scheduler trigger. Both GET and POST
// are accepted because hosted cron services differ in which they send.
func RegisterCronRoutes(router fiber.Router, job NewsletterJob, secret string) error {
	h, err := NewCronHandler(job)
	if err != nil {
		return err
	}

	cron := router.Group("/api/cron", BearerAuth(secret))
	cron.Get("/newsletter", h.RunNewsletter)
	cron.Post("/newsletter", h.RunNewsletter)

	return nil
}

func (h *CronHandler) RunNewsletter(c *fiber.Ctx) error {
	result, err := h.job.Run(requestContext(c))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("newsletter dispatch failed: %v", err))
	}

	return c.Status(fiber.StatusOK).JSON(cronResponse{
		Newsletter: newsletterStatus{
			Success: result.Newsletter.Success,
			Message: result.Newsletter.Message,
		},
		Maintenance: result.Maintenance,
	})
}
