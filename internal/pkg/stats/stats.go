package stats

import (
	"sync"
	"sync/atomic"

	"github.com/riiicil/autometa/internal/pkg/config"
)

type stats struct {
	FilesCompleted  *rate
	Processed       *counter
	Failed          *counter
	Skipped         *counter
	Stopped         *counter
	Retries         *counter
	ProviderCalls   *counter
	ProviderErrors  *counter
	RateLimitHits   *counter
	WorkerRoutines  *counter
	MetadataEmbeds  *counter
	CSVRowsExported *counter
	Paused          atomic.Bool
}

var (
	globalStats     *stats
	globalPromStats *prometheusStats
	doOnce          sync.Once
)

func Init() error {
	var done = false

	doOnce.Do(func() {
		prefix := ""
		promEnabled := false
		if c := config.Get(); c != nil {
			job = c.Job
			prefix = c.PrometheusPrefix
			promEnabled = c.Prometheus
		}

		globalPromStats = newPrometheusStats(prefix)
		if promEnabled {
			registerPrometheusMetrics()
		}

		globalStats = &stats{
			FilesCompleted:  newRate(),
			Processed:       &counter{},
			Failed:          &counter{},
			Skipped:         &counter{},
			Stopped:         &counter{},
			Retries:         &counter{},
			ProviderCalls:   &counter{},
			ProviderErrors:  &counter{},
			RateLimitHits:   &counter{},
			WorkerRoutines:  &counter{},
			MetadataEmbeds:  &counter{},
			CSVRowsExported: &counter{},
		}
		done = true
	})

	if !done {
		return ErrStatsAlreadyInitialized
	}

	return nil
}

func Reset() {
	globalStats.FilesCompleted.reset()
	globalStats.Processed.reset()
	globalStats.Failed.reset()
	globalStats.Skipped.reset()
	globalStats.Stopped.reset()
	globalStats.Retries.reset()
	globalStats.ProviderCalls.reset()
	globalStats.ProviderErrors.reset()
	globalStats.RateLimitHits.reset()
	globalStats.WorkerRoutines.reset()
	globalStats.MetadataEmbeds.reset()
	globalStats.CSVRowsExported.reset()
}

// GetMap returns a map of the current stats, used for the end-of-run summary
func GetMap() map[string]interface{} {
	return map[string]interface{}{
		"Files/s":           globalStats.FilesCompleted.get(),
		"Total completed":   globalStats.FilesCompleted.getTotal(),
		"Processed":         globalStats.Processed.get(),
		"Failed":            globalStats.Failed.get(),
		"Skipped":           globalStats.Skipped.get(),
		"Stopped":           globalStats.Stopped.get(),
		"Retries":           globalStats.Retries.get(),
		"Provider calls":    globalStats.ProviderCalls.get(),
		"Provider errors":   globalStats.ProviderErrors.get(),
		"Rate limit hits":   globalStats.RateLimitHits.get(),
		"Worker routines":   globalStats.WorkerRoutines.get(),
		"Metadata embeds":   globalStats.MetadataEmbeds.get(),
		"CSV rows exported": globalStats.CSVRowsExported.get(),
	}
}
