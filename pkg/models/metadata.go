package models

import (
	"strings"
	"unicode"
)

// MaxKeywords is the hard platform cap on exported keywords, whatever the
// user-configured limit says
const MaxKeywords = 60

// Metadata is the payload produced by one provider call
type Metadata struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Tags                 []string `json:"tags"`
	AdobeStockCategory   string   `json:"adobe_stock_category,omitempty"`
	ShutterstockCategory string   `json:"shutterstock_category,omitempty"`
}

// Empty reports whether the metadata carries nothing worth embedding
func (m *Metadata) Empty() bool {
	return m == nil || (m.Title == "" && m.Description == "" && len(m.Tags) == 0)
}

// NormalizeTags lowercases, strips non-alphanumeric runes (keeping spaces and
// hyphens), dedupes preserving order, and caps the list at limit. The limit is
// clamped to [1, MaxKeywords].
func NormalizeTags(tags []string, limit int) []string {
	if limit < 1 || limit > MaxKeywords {
		limit = MaxKeywords
	}

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := cleanTag(tag)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
		if len(out) == limit {
			break
		}
	}
	return out
}

func cleanTag(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
