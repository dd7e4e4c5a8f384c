package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptVariants(t *testing.T) {
	image := buildPrompt(PriorityDetailed, false, false, 30)
	assert.Contains(t, image, "up to 30 unique single-word keywords")
	assert.Contains(t, image, "minimum 6 words, maximum 180 characters")
	assert.Contains(t, image, "'Abstract'")

	png := buildPrompt(PriorityDetailed, true, false, 30)
	assert.Contains(t, png, "ignore the background")

	video := buildPrompt(PriorityDetailed, false, true, 30)
	assert.Contains(t, video, "video frames")
	assert.Contains(t, video, "'Holidays'")
	assert.NotContains(t, video, "'Abstract'", "video tier uses the video category list")
}

func TestBuildPromptTiers(t *testing.T) {
	assert.Contains(t, buildPrompt(PriorityBalanced, false, false, 10), "minimum 5 words, maximum 165 characters")
	assert.Contains(t, buildPrompt(PriorityLess, false, false, 10), "minimum 4 words, maximum 150 characters")
	// unknown tiers fall back to detailed
	assert.Contains(t, buildPrompt("bogus", false, false, 10), "minimum 6 words, maximum 180 characters")
}

func TestBuildPromptEndsWithSchema(t *testing.T) {
	prompt := buildPrompt(PriorityDetailed, false, false, 10)
	assert.True(t, strings.HasSuffix(prompt, jsonTemplate))
}
