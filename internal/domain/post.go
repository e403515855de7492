package domain

import "time"

// Post is the read model of a blog post a newsletter is built from.
// Content holds the editor's JSON block document.
type Post struct {
	ID               string
	Title            string
	Slug             string
	Excerpt          *string
	Content          string
	CoverImageURL    *string
	PublishedAt      *time.Time
	NewsletterSentAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewsletterSent reports whether a newsletter was already initiated for the post.
func (p *Post) NewsletterSent() bool {
	return p != nil && p.NewsletterSentAt != nil
}
