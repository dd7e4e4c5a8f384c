package stats

/////////////////////////
//    FilesCompleted   //
/////////////////////////

// FileCompletedIncr increments the FilesCompleted rate counter by 1.
func FileCompletedIncr() {
	globalStats.FilesCompleted.incr(1)
}

// FilesCompletedGet returns the total number of completed files.
func FilesCompletedGet() uint64 { return globalStats.FilesCompleted.getTotal() }

/////////////////////////
//      Processed      //
/////////////////////////

// ProcessedIncr increments the Processed counter by 1.
func ProcessedIncr() {
	globalStats.Processed.incr(1)
	globalPromStats.filesProcessed.WithLabelValues(job, hostname, version).Inc()
}

// ProcessedGet returns the current value of the Processed counter.
func ProcessedGet() uint64 { return globalStats.Processed.get() }

/////////////////////////
//        Failed       //
/////////////////////////

// FailedIncr increments the Failed counter by 1.
func FailedIncr() {
	globalStats.Failed.incr(1)
	globalPromStats.filesFailed.WithLabelValues(job, hostname, version).Inc()
}

// FailedGet returns the current value of the Failed counter.
func FailedGet() uint64 { return globalStats.Failed.get() }

/////////////////////////
//       Skipped       //
/////////////////////////

// SkippedIncr increments the Skipped counter by 1.
func SkippedIncr() {
	globalStats.Skipped.incr(1)
	globalPromStats.filesSkipped.WithLabelValues(job, hostname, version).Inc()
}

// SkippedGet returns the current value of the Skipped counter.
func SkippedGet() uint64 { return globalStats.Skipped.get() }

/////////////////////////
//       Stopped       //
/////////////////////////

// StoppedIncr increments the Stopped counter by 1.
func StoppedIncr() {
	globalStats.Stopped.incr(1)
	globalPromStats.filesStopped.WithLabelValues(job, hostname, version).Inc()
}

// StoppedGet returns the current value of the Stopped counter.
func StoppedGet() uint64 { return globalStats.Stopped.get() }

/////////////////////////
//       Retries       //
/////////////////////////

// RetriesIncr increments the Retries counter by 1.
func RetriesIncr() {
	globalStats.Retries.incr(1)
	globalPromStats.retries.WithLabelValues(job, hostname, version).Inc()
}

// RetriesGet returns the current value of the Retries counter.
func RetriesGet() uint64 { return globalStats.Retries.get() }

/////////////////////////
//    ProviderCalls    //
/////////////////////////

// ProviderCallsIncr increments the ProviderCalls counter by 1.
func ProviderCallsIncr() {
	globalStats.ProviderCalls.incr(1)
	globalPromStats.providerCalls.WithLabelValues(job, hostname, version).Inc()
}

// ProviderCallsGet returns the current value of the ProviderCalls counter.
func ProviderCallsGet() uint64 { return globalStats.ProviderCalls.get() }

/////////////////////////
//    ProviderErrors   //
/////////////////////////

// ProviderErrorsIncr increments the ProviderErrors counter by 1.
func ProviderErrorsIncr() {
	globalStats.ProviderErrors.incr(1)
	globalPromStats.providerErrors.WithLabelValues(job, hostname, version).Inc()
}

// ProviderErrorsGet returns the current value of the ProviderErrors counter.
func ProviderErrorsGet() uint64 { return globalStats.ProviderErrors.get() }

/////////////////////////
//    RateLimitHits    //
/////////////////////////

// RateLimitHitsIncr increments the RateLimitHits counter by 1.
func RateLimitHitsIncr() {
	globalStats.RateLimitHits.incr(1)
	globalPromStats.rateLimitHits.WithLabelValues(job, hostname, version).Inc()
}

// RateLimitHitsGet returns the current value of the RateLimitHits counter.
func RateLimitHitsGet() uint64 { return globalStats.RateLimitHits.get() }

/////////////////////////
//   WorkerRoutines    //
/////////////////////////

// WorkerRoutinesIncr increments the WorkerRoutines counter by 1.
func WorkerRoutinesIncr() {
	globalStats.WorkerRoutines.incr(1)
	globalPromStats.workerRoutines.WithLabelValues(job, hostname, version).Inc()
}

// WorkerRoutinesDecr decrements the WorkerRoutines counter by 1.
func WorkerRoutinesDecr() {
	globalStats.WorkerRoutines.decr(1)
	globalPromStats.workerRoutines.WithLabelValues(job, hostname, version).Dec()
}

// WorkerRoutinesGet returns the current value of the WorkerRoutines counter.
func WorkerRoutinesGet() uint64 { return globalStats.WorkerRoutines.get() }

/////////////////////////
//   MetadataEmbeds    //
/////////////////////////

// MetadataEmbedsIncr increments the MetadataEmbeds counter by 1.
func MetadataEmbedsIncr() {
	globalStats.MetadataEmbeds.incr(1)
	globalPromStats.metadataEmbeds.WithLabelValues(job, hostname, version).Inc()
}

// MetadataEmbedsGet returns the current value of the MetadataEmbeds counter.
func MetadataEmbedsGet() uint64 { return globalStats.MetadataEmbeds.get() }

/////////////////////////
//   CSVRowsExported   //
/////////////////////////

// CSVRowsExportedIncr increments the CSVRowsExported counter by 1.
func CSVRowsExportedIncr() {
	globalStats.CSVRowsExported.incr(1)
	globalPromStats.csvRowsExported.WithLabelValues(job, hostname, version).Inc()
}

// CSVRowsExportedGet returns the current value of the CSVRowsExported counter.
func CSVRowsExportedGet() uint64 { return globalStats.CSVRowsExported.get() }

/////////////////////////
//        Paused       //
/////////////////////////

// PausedSet sets the Paused flag to true.
func PausedSet() { globalStats.Paused.Store(true) }

// PausedUnset sets the Paused flag to false.
func PausedUnset() { globalStats.Paused.Store(false) }

// PausedGet returns the current value of the Paused flag.
func PausedGet() bool { return globalStats.Paused.Load() }
