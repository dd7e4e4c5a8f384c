package log

import "errors"

var (
	// ErrLoggerAlreadyInitialized is returned when Start is called twice
	ErrLoggerAlreadyInitialized = errors.New("logger already initialized")
)
