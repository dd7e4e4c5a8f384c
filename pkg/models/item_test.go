package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
	}{
		{"photo.jpg", KindImage},
		{"photo.JPEG", KindImage},
		{"art.png", KindImage},
		{"drawing.eps", KindVector},
		{"drawing.AI", KindVector},
		{"icon.svg", KindVector},
		{"clip.mp4", KindVideo},
		{"clip.MOV", KindVideo},
		{"notes.txt", KindUnsupported},
		{"archive.zip", KindUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.path), tt.path)
	}
}

func TestWorkItemRetryable(t *testing.T) {
	item := NewWorkItem("photo.jpg")
	item.Status = StatusFailedAPICall
	assert.True(t, item.Retryable())

	item.Attempts = 5
	assert.False(t, item.Retryable())

	item.Attempts = 0
	item.Status = StatusFailedEmptyInput
	assert.False(t, item.Retryable())
}

func TestNormalizeTags(t *testing.T) {
	tags := []string{"Sunset ", "sunset", "BEACH!", "ocean-view", "", "  ", "beach"}
	got := NormalizeTags(tags, 20)
	assert.Equal(t, []string{"sunset", "beach", "ocean-view"}, got)
}

func TestNormalizeTagsCap(t *testing.T) {
	tags := make([]string, 0, 30)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		tags = append(tags, s)
	}
	got := NormalizeTags(tags, 3)
	assert.Len(t, got, 3)

	// out-of-range limits clamp to the platform max
	got = NormalizeTags(tags, 0)
	assert.Len(t, got, 5)
	got = NormalizeTags(tags, 999)
	assert.Len(t, got, 5)
}
