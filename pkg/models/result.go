package models

// BatchResult aggregates the final per-status counts of a run.
// Processed+Failed+Skipped+Stopped never exceeds Total and equals it at
// normal completion.
type BatchResult struct {
	Processed int
	Failed    int
	Skipped   int
	Stopped   int
	Total     int
	NoFiles   bool
}

// Accounted returns the number of items that reached a terminal state
func (r BatchResult) Accounted() int {
	return r.Processed + r.Failed + r.Skipped + r.Stopped
}
