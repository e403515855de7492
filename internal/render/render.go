package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// NewsletterData is everything one recipient's email body needs.
type NewsletterData struct {
	Title          string
	Preview        string
	CoverImageURL  string
	ReadMoreURL    string
	UnsubscribeURL string
}

// Renderer builds newsletter HTML and the links embedded in it.
type Renderer struct {
	siteURL  string
	template *template.Template
}

func NewRenderer(siteURL string) (*Renderer, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("site url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid site url: %w", err)
	}

	tmpl, err := template.ParseFS(templateFS, "templates/newsletter.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse newsletter template: %w", err)
	}

	return &Renderer{siteURL: trimmed, template: tmpl}, nil
}

func (r *Renderer) ReadMoreURL(slug string) string {
	return fmt.Sprintf("%s/blog/%s", r.siteURL, url.PathEscape(strings.TrimSpace(slug)))
}

func (r *Renderer) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/newsletter/unsubscribe?token=%s", r.siteURL, url.QueryEscape(token))
}

func (r *Renderer) Newsletter(data NewsletterData) (string, error) {
	var body bytes.Buffer
	if err := r.template.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}
