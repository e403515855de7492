package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNewsletterCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncEmailSent()
	metrics.IncEmailSent()
	metrics.IncEmailFailed("Permanent")
	metrics.IncEmailFailed("")
	metrics.ObserveSendDuration(120 * time.Millisecond)
	metrics.IncDispatch("sent")
	metrics.SetQuotaRemaining(42)
	metrics.IncCampaignInitiated()

	if got := testutil.ToFloat64(metrics.emailsSentTotal); got != 2 {
		t.Fatalf("newsletter_emails_sent_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("permanent")); got != 1 {
		t.Fatalf("newsletter_emails_failed_total{permanent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("newsletter_emails_failed_total{unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("sent")); got != 1 {
		t.Fatalf("newsletter_dispatch_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.quotaRemaining); got != 42 {
		t.Fatalf("newsletter_quota_remaining = %v, want 42", got)
	}
	if got := testutil.ToFloat64(metrics.campaignsInitiated); got != 1 {
		t.Fatalf("newsletter_campaigns_initiated_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncEmailSent()
	metrics.IncEmailFailed("permanent")
	metrics.ObserveSendDuration(time.Second)
	metrics.IncDispatch("noop")
	metrics.SetQuotaRemaining(1)
	metrics.IncCampaignInitiated()
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
