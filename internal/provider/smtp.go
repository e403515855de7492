package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gopkg.in/gomail.v2"
)

type smtpSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPProvider sends email through a plain SMTP relay.
type SMTPProvider struct {
	dialer smtpSender
}

func NewSMTPProvider(host string, port int, username, password string) (*SMTPProvider, error) {
	trimmedHost := strings.TrimSpace(host)
	if trimmedHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid smtp port: %d", port)
	}

	return &SMTPProvider{dialer: gomail.NewDialer(trimmedHost, port, username, password)}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, email domain.Email) (*SendResponse, error) {
	if p == nil || p.dialer == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	// gomail has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", email.From)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/html", email.HTML)

	if err := p.dialer.DialAndSend(m); err != nil {
		return nil, &ProviderError{
			Message:   "smtp send failed",
			Transient: IsTransient(err),
			Cause:     err,
		}
	}

	return &SendResponse{}, nil
}
