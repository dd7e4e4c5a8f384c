package models

// ProcessingStatus qualifies the final state of a work item for one attempt
type ProcessingStatus int

const (
	// StatusProcessedWithMetadata is for files copied to the output with metadata embedded
	StatusProcessedWithMetadata ProcessingStatus = iota
	// StatusProcessedWithoutMetadata is for files copied to the output with embedding disabled or nothing to embed
	StatusProcessedWithoutMetadata
	// StatusProcessedEmbedFailed is for files copied to the output but whose embed step failed
	StatusProcessedEmbedFailed
	// StatusProcessedUnknownEmbed is for files copied to the output with an unrecognized embed outcome
	StatusProcessedUnknownEmbed
	// StatusSkippedAlreadyExists is for files whose output already existed before processing
	StatusSkippedAlreadyExists
	// StatusStopped is for files whose processing observed the cancellation signal
	StatusStopped
	// StatusFailedAPICall is for files whose provider call returned an error
	StatusFailedAPICall
	// StatusFailedCopyToOutput is for files that could not be copied to the output directory
	StatusFailedCopyToOutput
	// StatusFailedFormatConversion is for vector files whose rasterization failed
	StatusFailedFormatConversion
	// StatusFailedFrameExtraction is for videos that yielded no frames
	StatusFailedFrameExtraction
	// StatusFailedWorker is for files whose worker hit an unexpected error
	StatusFailedWorker
	// StatusFailedTimeout is for files whose processing exceeded the per-file timeout
	StatusFailedTimeout
	// StatusFailedUnclassified is for failures that fit no other bucket
	StatusFailedUnclassified
	// StatusFailedUnsupportedFormat is for files with an extension outside the allow-list
	StatusFailedUnsupportedFormat
	// StatusFailedEmptyInput is for inputs smaller than the minimum plausible size
	StatusFailedEmptyInput
	// StatusFailedInputMissing is for inputs that disappeared between enumeration and dispatch
	StatusFailedInputMissing
)

var statusNames = map[ProcessingStatus]string{
	StatusProcessedWithMetadata:    "processed_with_metadata",
	StatusProcessedWithoutMetadata: "processed_without_metadata",
	StatusProcessedEmbedFailed:     "processed_metadata_embed_failed",
	StatusProcessedUnknownEmbed:    "processed_unknown_embed_status",
	StatusSkippedAlreadyExists:     "skipped_already_exists",
	StatusStopped:                  "stopped",
	StatusFailedAPICall:            "failed_api_call",
	StatusFailedCopyToOutput:       "failed_copy_to_output",
	StatusFailedFormatConversion:   "failed_format_conversion",
	StatusFailedFrameExtraction:    "failed_frame_extraction",
	StatusFailedWorker:             "failed_worker_exception",
	StatusFailedTimeout:            "failed_timeout",
	StatusFailedUnclassified:       "failed_unclassified_exception",
	StatusFailedUnsupportedFormat:  "failed_unsupported_format",
	StatusFailedEmptyInput:         "failed_empty_or_too_small_input",
	StatusFailedInputMissing:       "failed_input_missing_at_dispatch",
}

func (s ProcessingStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsSuccess returns true for the processed_* statuses
func (s ProcessingStatus) IsSuccess() bool {
	switch s {
	case StatusProcessedWithMetadata, StatusProcessedWithoutMetadata,
		StatusProcessedEmbedFailed, StatusProcessedUnknownEmbed:
		return true
	}
	return false
}

// IsSkip returns true for non-failure, non-retry skips
func (s ProcessingStatus) IsSkip() bool {
	return s == StatusSkippedAlreadyExists
}

// IsStopped returns true when the status records an observed cancellation
func (s ProcessingStatus) IsStopped() bool {
	return s == StatusStopped
}

// IsFailure returns true for every status that is neither success, skip nor stop.
// The three predicates above plus IsFailure partition the whole vocabulary.
func (s ProcessingStatus) IsFailure() bool {
	return !s.IsSuccess() && !s.IsSkip() && !s.IsStopped()
}

// RetryPriority orders retryable failures when rebuilding a retry round
type RetryPriority int

const (
	RetryPriorityLow RetryPriority = iota
	RetryPriorityMedium
	RetryPriorityHigh
)

// RetryRule is the per-status retry policy entry
type RetryRule struct {
	Priority    RetryPriority
	MaxAttempts int
}

// RetryPolicy maps each retryable failure status to its rule. A status absent
// from this map is never retried, whatever the attempt count.
var RetryPolicy = map[ProcessingStatus]RetryRule{
	StatusFailedAPICall:          {Priority: RetryPriorityHigh, MaxAttempts: 5},
	StatusFailedCopyToOutput:     {Priority: RetryPriorityMedium, MaxAttempts: 3},
	StatusFailedFormatConversion: {Priority: RetryPriorityMedium, MaxAttempts: 3},
	StatusFailedFrameExtraction:  {Priority: RetryPriorityMedium, MaxAttempts: 3},
	StatusFailedWorker:           {Priority: RetryPriorityMedium, MaxAttempts: 2},
	StatusFailedTimeout:          {Priority: RetryPriorityMedium, MaxAttempts: 2},
	StatusFailedUnclassified:     {Priority: RetryPriorityLow, MaxAttempts: 2},
}

// IsRetryable returns true when the status has a retry rule and the item has
// not yet consumed all of its attempts
func IsRetryable(status ProcessingStatus, attempts int) bool {
	rule, ok := RetryPolicy[status]
	if !ok {
		return false
	}
	return attempts < rule.MaxAttempts
}
