// Package batch implements the run orchestrator. It enumerates the input
// directory, drives every file through the per-file pipeline under a bounded
// worker pool, classifies each outcome into the processing status vocabulary
// and runs the policy-driven retry loop until convergence or cancellation.
//
// All WorkItem state (attempts, status) and the aggregate counters are
// mutated only on the control goroutine, after a worker result has been
// collected. Workers share nothing but the stop token and the provider's
// rotation state, which guards itself.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/pipeline"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/internal/pkg/utils"
	"github.com/riiicil/autometa/pkg/models"
)

// defaultFileTimeout bounds the wait on a single worker result so a hung
// subprocess or request can never wedge the whole run
const defaultFileTimeout = 120 * time.Second

// Processor runs one work item to a terminal status.
// *pipeline.Pipeline is the production implementation.
type Processor interface {
	Process(t *stop.Token, item *models.WorkItem, apiKey string) pipeline.Result
}

// Options carries the orchestrator configuration for one run
type Options struct {
	InputDir string

	// APIKeys are assigned to dispatches round-robin, independently of the
	// LRU selection the provider applies inside its own calls.
	APIKeys []string

	Workers      int
	DelaySeconds float64
	AutoRetry    bool
	FileTimeout  time.Duration

	// Progress, when set, is invoked on the control goroutine after every
	// classified result of the initial pass with (completed, total).
	Progress func(completed, total int)
}

// Orchestrator owns the work queue and the retry loop for one batch run
type Orchestrator struct {
	proc     Processor
	opts     Options
	logger   *log.FieldedLogger
	keyIndex int
}

// New builds an orchestrator dispatching to the given processor
func New(proc Processor, opts Options) *Orchestrator {
	return &Orchestrator{
		proc:   proc,
		opts:   opts,
		logger: log.NewFieldedLogger(&log.Fields{"component": "batch"}),
	}
}

// outcome pairs a collected worker result with its item
type outcome struct {
	item   *models.WorkItem
	status models.ProcessingStatus
}

// Run executes the whole batch: initial pass, then retry rounds while
// retryable failures remain. The returned result accounts for every
// enumerated file exactly once.
func (o *Orchestrator) Run(t *stop.Token) (models.BatchResult, error) {
	items, err := o.enumerate()
	if err != nil {
		return models.BatchResult{}, err
	}
	if len(items) == 0 {
		o.logger.Warn("no eligible files found", "dir", o.opts.InputDir)
		return models.BatchResult{NoFiles: true}, nil
	}

	o.logger.Info("batch starting", "files", len(items), "workers", o.workers())
	if o.opts.Progress != nil {
		o.opts.Progress(0, len(items))
	}
	o.runRound(t, items, o.opts.Progress, true)

	if o.opts.AutoRetry && !t.Stopped() {
		o.retryLoop(t, items)
	}

	result := tally(items)
	o.logger.Info("batch finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"stopped", result.Stopped,
		"total", result.Total)
	return result, nil
}

// enumerate lists the input directory and keeps regular files whose extension
// is on the allow-list, in directory listing order
func (o *Orchestrator) enumerate() ([]*models.WorkItem, error) {
	entries, err := os.ReadDir(o.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	supported := models.SupportedExtensions()
	var items []*models.WorkItem
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !utils.StringInSlice(strings.ToLower(filepath.Ext(entry.Name())), supported) {
			continue
		}
		items = append(items, models.NewWorkItem(filepath.Join(o.opts.InputDir, entry.Name())))
	}
	return items, nil
}

// runRound processes items in sequential batches of the worker-pool size.
// Classification happens in completion order, on this goroutine only. When
// markUndispatchedStopped is set (initial pass), items never dispatched
// because of a stop request are counted stopped; retry rounds instead leave
// them on their previous failure status.
func (o *Orchestrator) runRound(t *stop.Token, items []*models.WorkItem, progress func(completed, total int), markUndispatchedStopped bool) {
	workers := o.workers()
	total := len(items)
	completed := 0

	classify := func(item *models.WorkItem, status models.ProcessingStatus, attempted bool) {
		item.Status = status
		if attempted {
			item.Attempts++
		}
		completed++
		o.record(item, status)
		if progress != nil {
			progress(completed, total)
		}
	}

	for start := 0; start < total; start += workers {
		if start > 0 && o.opts.DelaySeconds > 0 {
			t.Sleep(time.Duration(o.opts.DelaySeconds * float64(time.Second)))
		}

		chunk := items[start:min(start+workers, total)]
		results := make(chan outcome, len(chunk))
		swg := sizedwaitgroup.New(workers)
		dispatched := 0
		for _, item := range chunk {
			if t.Stopped() {
				break
			}
			key := o.nextKey()
			swg.Add()
			stats.WorkerRoutinesIncr()
			go func(it *models.WorkItem, k string) {
				defer swg.Done()
				defer stats.WorkerRoutinesDecr()
				results <- outcome{item: it, status: o.execute(t, it, k)}
			}(item, key)
			dispatched++
		}

		for i := 0; i < dispatched; i++ {
			oc := <-results
			classify(oc.item, oc.status, true)
		}
		swg.Wait()

		if markUndispatchedStopped {
			for _, item := range chunk[dispatched:] {
				classify(item, models.StatusStopped, false)
			}
		}
	}
}

// retryLoop reruns the retryable failures in priority order until the set
// empties or a stop request is observed. Attempt counters already include the
// initial pass, so the per-status max-attempts budgets bound the loop.
func (o *Orchestrator) retryLoop(t *stop.Token, items []*models.WorkItem) {
	for round := 1; !t.Stopped(); round++ {
		retryable := retryableItems(items)
		if len(retryable) == 0 {
			return
		}

		o.logger.Warn("retry round starting", "round", round, "files", len(retryable))
		successesBefore := countSuccesses(items)
		for range retryable {
			stats.RetriesIncr()
		}

		o.runRound(t, retryable, nil, false)

		recovered := countSuccesses(items) - successesBefore
		remaining := len(retryableItems(items))
		o.logger.Info("retry round finished", "round", round, "recovered", recovered, "remaining", remaining)
		if recovered == 0 && remaining > 0 {
			o.logger.Warn("no progress this round, retryable files remain", "round", round)
		}
	}
}

// execute runs one item on a worker goroutine, bounded by the per-file
// timeout. A worker panic is contained and classified instead of taking the
// run down.
func (o *Orchestrator) execute(t *stop.Token, item *models.WorkItem, apiKey string) models.ProcessingStatus {
	done := make(chan models.ProcessingStatus, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("worker panic", "file", filepath.Base(item.Path), "panic", fmt.Sprintf("%v", r))
				done <- models.StatusFailedWorker
			}
		}()
		done <- o.proc.Process(t, item, apiKey).Status
	}()

	timeout := o.opts.FileTimeout
	if timeout <= 0 {
		timeout = defaultFileTimeout
	}
	select {
	case status := <-done:
		return status
	case <-time.After(timeout):
		o.logger.Error("file processing timed out", "file", filepath.Base(item.Path), "timeout", timeout.String())
		return models.StatusFailedTimeout
	}
}

// record updates the run counters and writes the per-file log line
func (o *Orchestrator) record(item *models.WorkItem, status models.ProcessingStatus) {
	stats.FileCompletedIncr()
	switch {
	case status.IsSuccess():
		stats.ProcessedIncr()
		o.logger.Info("processed", "file", filepath.Base(item.Path), "status", status.String())
	case status.IsSkip():
		stats.SkippedIncr()
		o.logger.Info("skipped, output already exists", "file", filepath.Base(item.Path))
	case status.IsStopped():
		stats.StoppedIncr()
		o.logger.Warn("stopped", "file", filepath.Base(item.Path))
	default:
		stats.FailedIncr()
		o.logger.Error("failed", "file", filepath.Base(item.Path), "status", status.String(), "attempts", item.Attempts)
	}
}

// nextKey assigns keys round-robin over the configured list
func (o *Orchestrator) nextKey() string {
	if len(o.opts.APIKeys) == 0 {
		return ""
	}
	key := o.opts.APIKeys[o.keyIndex%len(o.opts.APIKeys)]
	o.keyIndex++
	return key
}

func (o *Orchestrator) workers() int {
	if o.opts.Workers < 1 {
		return 1
	}
	return o.opts.Workers
}

// retryableItems returns the failures still inside their attempt budget,
// highest retry priority first (stable within a priority)
func retryableItems(items []*models.WorkItem) []*models.WorkItem {
	var out []*models.WorkItem
	for _, item := range items {
		if item.Status.IsFailure() && item.Retryable() {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return models.RetryPolicy[out[i].Status].Priority > models.RetryPolicy[out[j].Status].Priority
	})
	return out
}

func countSuccesses(items []*models.WorkItem) int {
	n := 0
	for _, item := range items {
		if item.Status.IsSuccess() {
			n++
		}
	}
	return n
}

// tally folds the final item statuses into the aggregate result
func tally(items []*models.WorkItem) models.BatchResult {
	result := models.BatchResult{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Status.IsSuccess():
			result.Processed++
		case item.Status.IsSkip():
			result.Skipped++
		case item.Status.IsStopped():
			result.Stopped++
		default:
			result.Failed++
		}
	}
	return result
}
