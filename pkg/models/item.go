package models

import (
	"path/filepath"
	"strings"
)

// FileKind qualifies how the per-file pipeline must treat an input
type FileKind int

const (
	// KindImage is for raster images sent to the provider as-is (after optional compression)
	KindImage FileKind = iota
	// KindVector is for EPS/AI/SVG files rasterized before the provider call
	KindVector
	// KindVideo is for videos sampled into a small frame sequence
	KindVideo
	// KindUnsupported is for everything else
	KindUnsupported
)

func (k FileKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVector:
		return "vector"
	case KindVideo:
		return "video"
	}
	return "unsupported"
}

var (
	imageExtensions  = []string{".jpg", ".jpeg", ".png"}
	vectorExtensions = []string{".eps", ".ai", ".svg"}
	videoExtensions  = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}
)

// KindOf derives the pipeline kind from the file extension
func KindOf(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range imageExtensions {
		if ext == e {
			return KindImage
		}
	}
	for _, e := range vectorExtensions {
		if ext == e {
			return KindVector
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return KindVideo
		}
	}
	return KindUnsupported
}

// SupportedExtensions returns the full extension allow-list
func SupportedExtensions() []string {
	all := make([]string, 0, len(imageExtensions)+len(vectorExtensions)+len(videoExtensions))
	all = append(all, imageExtensions...)
	all = append(all, vectorExtensions...)
	all = append(all, videoExtensions...)
	return all
}

// WorkItem tracks one input file across the initial pass and the retry rounds.
// It is owned by the orchestrator: Attempts and Status are only mutated on the
// control goroutine, after a worker result has been collected.
type WorkItem struct {
	Path     string
	Kind     FileKind
	Attempts int
	Status   ProcessingStatus
}

// NewWorkItem builds a WorkItem for a discovered input file
func NewWorkItem(path string) *WorkItem {
	return &WorkItem{
		Path:     path,
		Kind:     KindOf(path),
		Attempts: 0,
	}
}

// Retryable reports whether the item can be resubmitted given its last status
// and the attempts it has already consumed
func (w *WorkItem) Retryable() bool {
	return IsRetryable(w.Status, w.Attempts)
}
