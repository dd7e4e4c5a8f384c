package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/riiicil/autometa/pkg/models"
)

// ExtractJSON pulls a JSON object out of a model reply that may be wrapped in
// a markdown code fence or surrounded by prose. If no fence is found it falls
// back to scanning for the outermost brace pair.
func ExtractJSON(response string) string {
	const marker = "```"

	startIdx := strings.Index(response, marker)
	if startIdx == -1 {
		// No code block found, try to find a JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	endIdx := strings.Index(response[startIdx+len(marker):], marker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(marker)

	content := response[startIdx+len(marker) : endIdx]

	// Drop the language identifier line if present (e.g. "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

type rawMetadata struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Keywords             json.RawMessage `json:"keywords"`
	AdobeStockCategory   string          `json:"adobe_stock_category"`
	ShutterstockCategory string          `json:"shutterstock_category"`
}

// ParseMetadata decodes a model reply into Metadata. The keywords field may
// arrive as a JSON array or as one comma-separated string; both are accepted.
// Replies in the labelled text layout that backends without a JSON response
// mode occasionally fall back to are recovered by parseLabelledText. Tags are
// sanitized and capped at keywordLimit before return.
func ParseMetadata(text string, keywordLimit int) (*models.Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &raw); err != nil {
		if md := parseLabelledText(text, keywordLimit); md != nil {
			return md, nil
		}
		return nil, fmt.Errorf("decoding metadata JSON: %w", err)
	}

	var tags []string
	if len(raw.Keywords) > 0 {
		if err := json.Unmarshal(raw.Keywords, &tags); err != nil {
			var joined string
			if err := json.Unmarshal(raw.Keywords, &joined); err == nil {
				for _, part := range strings.Split(joined, ",") {
					if trimmed := strings.TrimSpace(part); trimmed != "" {
						tags = append(tags, trimmed)
					}
				}
			}
		}
	}

	md := &models.Metadata{
		Title:                strings.TrimSpace(raw.Title),
		Description:          strings.TrimSpace(raw.Description),
		Tags:                 models.NormalizeTags(tags, keywordLimit),
		AdobeStockCategory:   strings.TrimSpace(raw.AdobeStockCategory),
		ShutterstockCategory: strings.TrimSpace(raw.ShutterstockCategory),
	}

	if md.Empty() {
		return nil, ErrEmptyResponse
	}
	return md, nil
}

var (
	labelTitleRe       = regexp.MustCompile(`(?im)^title:\s*(.*)`)
	labelDescriptionRe = regexp.MustCompile(`(?im)^description:\s*(.*)`)
	labelKeywordsRe    = regexp.MustCompile(`(?im)^keywords:\s*(.*)`)
	labelAdobeRe       = regexp.MustCompile(`AdobeStockCategory:\s*(\d+\.?\s*[^\n]*)`)
	labelShutterRe     = regexp.MustCompile(`ShutterstockCategory:\s*([^\n]*)`)
	labelCategorySplit = regexp.MustCompile(`AdobeStockCategory:|ShutterstockCategory:`)
)

// parseLabelledText recovers metadata from the line-labelled layout:
//
//	Title: ...
//	Description: ...
//	Keywords: a, b, c
//
// Returns nil when the text carries none of the labels.
func parseLabelledText(text string, keywordLimit int) *models.Metadata {
	md := &models.Metadata{}

	if m := labelTitleRe.FindStringSubmatch(text); m != nil {
		md.Title = strings.TrimSpace(m[1])
	}
	if m := labelDescriptionRe.FindStringSubmatch(text); m != nil {
		md.Description = strings.TrimSpace(m[1])
	}
	if m := labelKeywordsRe.FindStringSubmatch(text); m != nil {
		// category labels sometimes trail on the same line
		line := labelCategorySplit.Split(m[1], 2)[0]
		var tags []string
		for _, part := range strings.Split(line, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
		md.Tags = models.NormalizeTags(tags, keywordLimit)
	}
	if m := labelAdobeRe.FindStringSubmatch(text); m != nil {
		md.AdobeStockCategory = strings.TrimSpace(m[1])
	}
	if m := labelShutterRe.FindStringSubmatch(text); m != nil {
		md.ShutterstockCategory = strings.TrimSpace(m[1])
	}

	if md.Empty() {
		return nil
	}
	return md
}
