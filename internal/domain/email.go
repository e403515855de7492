package domain

import (
	"fmt"
	"strings"
)

// Email is a single outbound message handed to the email provider.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

func (e Email) Validate() error {
	if strings.TrimSpace(e.From) == "" {
		return fmt.Errorf("%w: sender is required", ErrValidation)
	}
	if strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(e.HTML) == "" {
		return fmt.Errorf("%w: html body is required", ErrValidation)
	}
	return nil
}
