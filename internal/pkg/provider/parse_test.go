package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fenced with language",
			input:    "Here you go:\n```json\n{\"title\": \"x\"}\n```\nthanks",
			expected: `{"title": "x"}`,
		},
		{
			name:     "fenced without language",
			input:    "```\n{\"title\": \"x\"}\n```",
			expected: `{"title": "x"}`,
		},
		{
			name:     "bare object with prose",
			input:    "Sure! {\"title\": \"x\"} Hope that helps.",
			expected: `{"title": "x"}`,
		},
		{
			name:     "plain json",
			input:    `{"title": "x"}`,
			expected: `{"title": "x"}`,
		},
		{
			name:     "no json at all",
			input:    "sorry, cannot help",
			expected: "sorry, cannot help",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractJSON(tc.input))
		})
	}
}

func TestParseMetadata(t *testing.T) {
	text := `{"title": "Red fox in snow", "description": "A fox walking through fresh snow",
		"keywords": ["Fox", "fox", "Snow", "winter!", "wildlife"],
		"adobe_stock_category": "1. Animals", "shutterstock_category": "Animals/Wildlife"}`

	md, err := ParseMetadata(text, 3)
	require.NoError(t, err)
	assert.Equal(t, "Red fox in snow", md.Title)
	assert.Equal(t, "A fox walking through fresh snow", md.Description)
	// sanitized, deduped, capped at 3
	assert.Equal(t, []string{"fox", "snow", "winter"}, md.Tags)
	assert.Equal(t, "1. Animals", md.AdobeStockCategory)
	assert.Equal(t, "Animals/Wildlife", md.ShutterstockCategory)
}

func TestParseMetadataCommaSeparatedKeywords(t *testing.T) {
	text := `{"title": "t", "description": "d", "keywords": "fox, snow , winter"}`

	md, err := ParseMetadata(text, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fox", "snow", "winter"}, md.Tags)
}

func TestParseMetadataMarkdownWrapped(t *testing.T) {
	text := "```json\n{\"title\": \"t\", \"description\": \"d\", \"keywords\": [\"a\"]}\n```"

	md, err := ParseMetadata(text, 10)
	require.NoError(t, err)
	assert.Equal(t, "t", md.Title)
}

func TestParseMetadataEmpty(t *testing.T) {
	_, err := ParseMetadata(`{"title": "", "description": "", "keywords": []}`, 10)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestParseMetadataInvalidJSON(t *testing.T) {
	_, err := ParseMetadata("not json at all", 10)
	assert.Error(t, err)
}

func TestParseMetadataLabelledTextFallback(t *testing.T) {
	text := "Title: Red fox in snow\n" +
		"Description: A fox walking through fresh snow\n" +
		"Keywords: Fox, snow, winter\n" +
		"AdobeStockCategory: 1. Animals\n" +
		"ShutterstockCategory: Animals/Wildlife\n"

	md, err := ParseMetadata(text, 10)
	require.NoError(t, err)
	assert.Equal(t, "Red fox in snow", md.Title)
	assert.Equal(t, "A fox walking through fresh snow", md.Description)
	assert.Equal(t, []string{"fox", "snow", "winter"}, md.Tags)
	assert.Equal(t, "1. Animals", md.AdobeStockCategory)
	assert.Equal(t, "Animals/Wildlife", md.ShutterstockCategory)
}

func TestParseMetadataLabelledTextInlineCategories(t *testing.T) {
	// some replies glue the category labels onto the keywords line
	text := "Keywords: fox, snow AdobeStockCategory: 1. Animals\nShutterstockCategory: Nature"

	md, err := ParseMetadata(text, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fox", "snow"}, md.Tags)
	assert.Equal(t, "1. Animals", md.AdobeStockCategory)
	assert.Equal(t, "Nature", md.ShutterstockCategory)
}
