package content

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

// PreviewLength is the rune budget of a newsletter preview line.
const PreviewLength = 150

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

type document struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type textData struct {
	Text  string          `json:"text"`
	Items json.RawMessage `json:"items"`
}

type listItem struct {
	Content string     `json:"content"`
	Text    string     `json:"text"`
	Items   []listItem `json:"items"`
}

// Preview returns the excerpt override when present, otherwise the opening
// text of the post's first text-bearing block.
func Preview(post *domain.Post) string {
	if post == nil {
		return ""
	}
	if post.Excerpt != nil {
		if excerpt := normalize(*post.Excerpt); excerpt != "" {
			return truncate(excerpt, PreviewLength)
		}
	}
	return truncate(FirstText(post.Content), PreviewLength)
}

// FirstText extracts plain text from the first block that carries any.
// Malformed documents yield an empty string.
func FirstText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ""
	}

	for _, b := range doc.Blocks {
		if text := blockText(b); text != "" {
			return text
		}
	}
	return ""
}

func blockText(b block) string {
	switch strings.ToLower(b.Type) {
	case "paragraph", "header", "heading", "quote":
	case "list", "checklist":
	default:
		return ""
	}

	var data textData
	if err := json.Unmarshal(b.Data, &data); err != nil {
		return ""
	}
	if text := normalize(data.Text); text != "" {
		return text
	}
	if len(data.Items) == 0 {
		return ""
	}

	return normalize(strings.Join(itemTexts(data.Items), " "))
}

// itemTexts accepts both plain string items and nested object items.
func itemTexts(raw json.RawMessage) []string {
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var nested []listItem
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}

	var texts []string
	var walk func(items []listItem)
	walk = func(items []listItem) {
		for _, item := range items {
			if item.Content != "" {
				texts = append(texts, item.Content)
			} else if item.Text != "" {
				texts = append(texts, item.Text)
			}
			walk(item.Items)
		}
	}
	walk(nested)
	return texts
}

func normalize(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
