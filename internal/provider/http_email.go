package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

const defaultHTTPEmailTimeout = 10 * time.Second

type httpEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type httpEmailResponse struct {
	ID string `json:"id"`
}

// HTTPEmailProvider sends email through a Resend-compatible JSON API.
type HTTPEmailProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewHTTPEmailProvider(endpoint, apiKey string) (*HTTPEmailProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPEmailTimeout)
	client.SetRetryCount(0)

	return NewHTTPEmailProviderWithClient(endpoint, apiKey, client)
}

func NewHTTPEmailProviderWithClient(endpoint, apiKey string, client *resty.Client) (*HTTPEmailProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("email api endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid email api endpoint: %w", err)
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, fmt.Errorf("email api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPEmailTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPEmailProvider{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   trimmedKey,
	}, nil
}

func (p *HTTPEmailProvider) Send(ctx context.Context, email domain.Email) (*SendResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(httpEmailRequest{
			From:    email.From,
			To:      []string{email.To},
			Subject: email.Subject,
			HTML:    email.HTML,
		}).
		Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "email api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "email api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID(response),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("email api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

// messageID prefers the id in the JSON body and falls back to request id headers.
func messageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	var parsed httpEmailResponse
	if err := json.Unmarshal(response.Body(), &parsed); err == nil && strings.TrimSpace(parsed.ID) != "" {
		return strings.TrimSpace(parsed.ID)
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
