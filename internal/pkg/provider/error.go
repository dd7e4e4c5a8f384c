package provider

import "errors"

var (
	// ErrStopped is returned when a cancellation signal was observed mid-call
	ErrStopped = errors.New("processing stopped")

	// ErrBlocked is returned when the provider refused the content. Never retried.
	ErrBlocked = errors.New("content blocked by provider")

	// ErrAuth is returned on 401/403 responses. Never retried.
	ErrAuth = errors.New("authentication failed")

	// ErrEmptyResponse is returned when a 200 response carries no usable metadata
	ErrEmptyResponse = errors.New("no usable metadata in response")

	// ErrMaxRetries is returned once the internal retry budget is spent
	ErrMaxRetries = errors.New("maximum retries exceeded")

	// ErrUnsupportedImage is returned for files the upload endpoints reject outright
	ErrUnsupportedImage = errors.New("image format not supported for upload")

	// ErrUnknownProvider is returned by New for an unrecognized provider id
	ErrUnknownProvider = errors.New("unknown provider")
)
