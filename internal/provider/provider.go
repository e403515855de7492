package provider

import (
	"context"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

// EmailProvider is the outbound email delivery port.
type EmailProvider interface {
	Send(ctx context.Context, email domain.Email) (*SendResponse, error)
}

// SendResponse carries provider call metadata for logging.
type SendResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
