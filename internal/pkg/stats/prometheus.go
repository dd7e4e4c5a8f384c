package stats

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riiicil/autometa/internal/pkg/utils"
)

var (
	hostname, _ = os.Hostname()
	version     = utils.GetVersion().Version
	job         string
)

type prometheusStats struct {
	filesProcessed  *prometheus.CounterVec
	filesFailed     *prometheus.CounterVec
	filesSkipped    *prometheus.CounterVec
	filesStopped    *prometheus.CounterVec
	retries         *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
	rateLimitHits   *prometheus.CounterVec
	workerRoutines  *prometheus.GaugeVec
	metadataEmbeds  *prometheus.CounterVec
	csvRowsExported *prometheus.CounterVec
}

func newPrometheusStats(prefix string) *prometheusStats {
	return &prometheusStats{
		filesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "files_processed", Help: "Total number of files processed successfully"},
			[]string{"job", "hostname", "version"},
		),
		filesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "files_failed", Help: "Total number of files that failed processing"},
			[]string{"job", "hostname", "version"},
		),
		filesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "files_skipped", Help: "Total number of files skipped"},
			[]string{"job", "hostname", "version"},
		),
		filesStopped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "files_stopped", Help: "Total number of files interrupted by a stop request"},
			[]string{"job", "hostname", "version"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "retries", Help: "Total number of retry attempts scheduled"},
			[]string{"job", "hostname", "version"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "provider_calls", Help: "Total number of calls made to vision providers"},
			[]string{"job", "hostname", "version"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "provider_errors", Help: "Total number of failed provider calls"},
			[]string{"job", "hostname", "version"},
		),
		rateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "rate_limit_hits", Help: "Total number of HTTP 429 responses from providers"},
			[]string{"job", "hostname", "version"},
		),
		workerRoutines: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: prefix + "worker_routines", Help: "Number of active worker routines"},
			[]string{"job", "hostname", "version"},
		),
		metadataEmbeds: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "metadata_embeds", Help: "Total number of successful metadata embeds"},
			[]string{"job", "hostname", "version"},
		),
		csvRowsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "csv_rows_exported", Help: "Total number of rows written to marketplace CSVs"},
			[]string{"job", "hostname", "version"},
		),
	}
}

func registerPrometheusMetrics() {
	prometheus.MustRegister(globalPromStats.filesProcessed)
	prometheus.MustRegister(globalPromStats.filesFailed)
	prometheus.MustRegister(globalPromStats.filesSkipped)
	prometheus.MustRegister(globalPromStats.filesStopped)
	prometheus.MustRegister(globalPromStats.retries)
	prometheus.MustRegister(globalPromStats.providerCalls)
	prometheus.MustRegister(globalPromStats.providerErrors)
	prometheus.MustRegister(globalPromStats.rateLimitHits)
	prometheus.MustRegister(globalPromStats.workerRoutines)
	prometheus.MustRegister(globalPromStats.metadataEmbeds)
	prometheus.MustRegister(globalPromStats.csvRowsExported)
}

func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
