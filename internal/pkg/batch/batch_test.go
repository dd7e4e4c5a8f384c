package batch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/riiicil/autometa/internal/pkg/pipeline"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	stats.Init()
	goleak.VerifyTestMain(m)
}

// fakeProcessor drives the orchestrator with canned per-item behaviour
type fakeProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	keys  []string
	fn    func(t *stop.Token, item *models.WorkItem, call int) models.ProcessingStatus
}

func (f *fakeProcessor) Process(t *stop.Token, item *models.WorkItem, apiKey string) pipeline.Result {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	name := filepath.Base(item.Path)
	f.calls[name]++
	call := f.calls[name]
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()

	return pipeline.Result{Status: f.fn(t, item, call)}
}

func (f *fakeProcessor) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProcessor) keyCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, k := range f.keys {
		counts[k]++
	}
	return counts
}

func always(status models.ProcessingStatus) func(*stop.Token, *models.WorkItem, int) models.ProcessingStatus {
	return func(*stop.Token, *models.WorkItem, int) models.ProcessingStatus {
		return status
	}
}

func writeInputs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("input"), 0644))
	}
	return dir
}

func TestRunNoFiles(t *testing.T) {
	fake := &fakeProcessor{fn: always(models.StatusProcessedWithMetadata)}
	o := New(fake, Options{InputDir: t.TempDir(), Workers: 2})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.True(t, result.NoFiles)
	assert.Zero(t, result.Total)
	assert.Empty(t, fake.calls)
}

func TestRunSkipsUnsupportedExtensions(t *testing.T) {
	dir := writeInputs(t, "a.jpg", "notes.txt", "b.png", "README.md")
	fake := &fakeProcessor{fn: always(models.StatusProcessedWithMetadata)}
	o := New(fake, Options{InputDir: dir, Workers: 2})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, fake.count("notes.txt"))
}

func TestRunThreeFilesOneSkipped(t *testing.T) {
	dir := writeInputs(t, "a.jpg", "b.jpg", "c.jpg")
	fake := &fakeProcessor{fn: func(_ *stop.Token, item *models.WorkItem, _ int) models.ProcessingStatus {
		if filepath.Base(item.Path) == "b.jpg" {
			return models.StatusSkippedAlreadyExists
		}
		return models.StatusProcessedWithMetadata
	}}
	o := New(fake, Options{InputDir: dir, Workers: 2})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, models.BatchResult{Processed: 2, Skipped: 1, Total: 3}, result)
	assert.Equal(t, result.Total, result.Accounted())
}

func TestRunRetriesExhaustAttemptBudget(t *testing.T) {
	dir := writeInputs(t, "a.jpg", "b.jpg")
	fake := &fakeProcessor{fn: always(models.StatusFailedAPICall)}
	o := New(fake, Options{InputDir: dir, Workers: 2, AutoRetry: true})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, result.Total, result.Accounted())

	// failed_api_call allows 5 attempts: the initial pass plus 4 retry rounds
	assert.Equal(t, 5, fake.count("a.jpg"))
	assert.Equal(t, 5, fake.count("b.jpg"))
}

func TestRunRetryRecovers(t *testing.T) {
	dir := writeInputs(t, "a.eps")
	fake := &fakeProcessor{fn: func(_ *stop.Token, _ *models.WorkItem, call int) models.ProcessingStatus {
		if call < 3 {
			return models.StatusFailedFormatConversion
		}
		return models.StatusProcessedWithMetadata
	}}
	o := New(fake, Options{InputDir: dir, Workers: 1, AutoRetry: true})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, fake.count("a.eps"))
}

func TestRunNonRetryableNotRetried(t *testing.T) {
	dir := writeInputs(t, "a.jpg")
	fake := &fakeProcessor{fn: always(models.StatusFailedEmptyInput)}
	o := New(fake, Options{InputDir: dir, Workers: 1, AutoRetry: true})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, fake.count("a.jpg"))
}

func TestRunCancellationMidBatch(t *testing.T) {
	dir := writeInputs(t,
		"f0.jpg", "f1.jpg", "f2.jpg", "f3.jpg", "f4.jpg",
		"f5.jpg", "f6.jpg", "f7.jpg", "f8.jpg", "f9.jpg")

	token := stop.NewToken()
	fake := &fakeProcessor{fn: func(_ *stop.Token, _ *models.WorkItem, _ int) models.ProcessingStatus {
		token.Stop()
		return models.StatusProcessedWithMetadata
	}}
	o := New(fake, Options{InputDir: dir, Workers: 2, AutoRetry: true})

	result, err := o.Run(token)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Stopped, 8, "not-yet-dispatched files count as stopped")
	assert.Equal(t, 10, result.Total)
	assert.Equal(t, result.Total, result.Accounted())
}

func TestRunTimeout(t *testing.T) {
	dir := writeInputs(t, "slow.jpg")
	release := make(chan struct{})
	fake := &fakeProcessor{fn: func(*stop.Token, *models.WorkItem, int) models.ProcessingStatus {
		<-release
		return models.StatusProcessedWithMetadata
	}}
	o := New(fake, Options{InputDir: dir, Workers: 1, FileTimeout: 50 * time.Millisecond})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	close(release)
	time.Sleep(20 * time.Millisecond) // let the abandoned worker drain before goleak
}

func TestRunKeyRotationRoundRobin(t *testing.T) {
	dir := writeInputs(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg")
	fake := &fakeProcessor{fn: always(models.StatusProcessedWithMetadata)}
	o := New(fake, Options{
		InputDir: dir,
		Workers:  2,
		APIKeys:  []string{"k1", "k2", "k3"},
	})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Processed)

	counts := fake.keyCounts()
	assert.Equal(t, map[string]int{"k1": 2, "k2": 2, "k3": 2}, counts)
}

func TestRunProgressMonotonic(t *testing.T) {
	dir := writeInputs(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg")
	fake := &fakeProcessor{fn: always(models.StatusProcessedWithMetadata)}

	type report struct{ completed, total int }
	var reports []report
	o := New(fake, Options{
		InputDir: dir,
		Workers:  2,
		Progress: func(completed, total int) {
			reports = append(reports, report{completed, total})
		},
	})

	_, err := o.Run(stop.NewToken())
	require.NoError(t, err)

	require.Len(t, reports, 6, "one initial report plus one per file")
	assert.Equal(t, report{0, 5}, reports[0])
	assert.Equal(t, report{5, 5}, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.Equal(t, reports[i-1].completed+1, reports[i].completed)
	}
}

func TestRunPanicClassifiedAsWorkerFailure(t *testing.T) {
	dir := writeInputs(t, "a.jpg")
	fake := &fakeProcessor{fn: func(_ *stop.Token, _ *models.WorkItem, call int) models.ProcessingStatus {
		if call == 1 {
			panic("worker blew up")
		}
		return models.StatusProcessedWithMetadata
	}}
	o := New(fake, Options{InputDir: dir, Workers: 1, AutoRetry: true})

	result, err := o.Run(stop.NewToken())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, fake.count("a.jpg"))
}

func TestRetryableItemsPriorityOrder(t *testing.T) {
	unclassified := &models.WorkItem{Path: "u.jpg", Status: models.StatusFailedUnclassified, Attempts: 1}
	api := &models.WorkItem{Path: "a.jpg", Status: models.StatusFailedAPICall, Attempts: 1}
	copyFail := &models.WorkItem{Path: "c.jpg", Status: models.StatusFailedCopyToOutput, Attempts: 1}
	processed := &models.WorkItem{Path: "p.jpg", Status: models.StatusProcessedWithMetadata}
	exhausted := &models.WorkItem{Path: "x.jpg", Status: models.StatusFailedAPICall, Attempts: 5}

	out := retryableItems([]*models.WorkItem{unclassified, api, copyFail, processed, exhausted})
	require.Len(t, out, 3)
	assert.Equal(t, "a.jpg", out[0].Path, "high priority first")
	assert.Equal(t, "c.jpg", out[1].Path)
	assert.Equal(t, "u.jpg", out[2].Path, "low priority last")
}

func TestTallyPartition(t *testing.T) {
	items := []*models.WorkItem{
		{Status: models.StatusProcessedWithMetadata},
		{Status: models.StatusProcessedEmbedFailed},
		{Status: models.StatusSkippedAlreadyExists},
		{Status: models.StatusStopped},
		{Status: models.StatusFailedAPICall},
		{Status: models.StatusFailedUnsupportedFormat},
	}
	result := tally(items)
	assert.Equal(t, models.BatchResult{Processed: 2, Skipped: 1, Stopped: 1, Failed: 2, Total: 6}, result)
	assert.Equal(t, result.Total, result.Accounted())
}
