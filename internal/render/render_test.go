package render

import (
	"strings"
	"testing"
)

func TestNewRendererValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRenderer(""); err == nil {
		t.Fatal("expected error for empty site url")
	}
	if _, err := NewRenderer("not a url"); err == nil {
		t.Fatal("expected error for invalid site url")
	}
}

func TestRendererURLs(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer("https://example.com/")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	if got := r.ReadMoreURL("hiring-trends-2026"); got != "https://example.com/blog/hiring-trends-2026" {
		t.Fatalf("ReadMoreURL() = %q", got)
	}
	if got := r.UnsubscribeURL("tok en+1"); got != "https://example.com/newsletter/unsubscribe?token=tok+en%2B1" {
		t.Fatalf("UnsubscribeURL() = %q", got)
	}
}

func TestRendererNewsletter(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer("https://example.com")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	body, err := r.Newsletter(NewsletterData{
		Title:          "Onboarding <checklists>",
		Preview:        "Five steps to a better first week",
		ReadMoreURL:    "https://example.com/blog/onboarding",
		UnsubscribeURL: "https://example.com/newsletter/unsubscribe?token=abc",
	})
	if err != nil {
		t.Fatalf("Newsletter() error = %v", err)
	}

	for _, want := range []string{
		"Onboarding &lt;checklists&gt;",
		"Five steps to a better first week",
		`href="https://example.com/blog/onboarding"`,
		"token=abc",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
	if strings.Contains(body, "<img") {
		t.Fatal("body should not include a cover image when none is set")
	}
}
