package stats

import "errors"

var (
	// ErrStatsAlreadyInitialized is returned when Init is called twice
	ErrStatsAlreadyInitialized = errors.New("stats already initialized")
)
