package convert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramePositions(t *testing.T) {
	tests := []struct {
		n        int
		expected []float64
	}{
		{0, []float64{0.5}},
		{1, []float64{0.5}},
		{2, []float64{0.25, 0.75}},
		{3, []float64{0.2, 0.5, 0.8}},
		{4, []float64{0.2, 0.4, 0.6, 0.8}},
		{5, []float64{0, 0.25, 0.5, 0.75, 1}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, FramePositions(tc.n), "n=%d", tc.n)
	}
}

func TestFramePositionsEvenSpacing(t *testing.T) {
	positions := FramePositions(9)
	require.Len(t, positions, 9)
	assert.Equal(t, 0.0, positions[0])
	assert.Equal(t, 1.0, positions[8])
	for i := 1; i < len(positions); i++ {
		assert.Greater(t, positions[i], positions[i-1], "positions must be strictly ascending")
	}
}

func TestFindToolMissing(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	t.Cleanup(func() { lookPath = orig })

	_, err := findTool("definitely-not-a-real-binary")
	assert.ErrorIs(t, err, ErrToolNotFound)

	err = EPSToJPEG(stop.NewToken(), "in.eps", "out.jpg")
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = ExtractFrames(stop.NewToken(), "in.mp4", t.TempDir(), 3)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestFindToolPicksFirstAvailable(t *testing.T) {
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if name == "second" {
			return "/usr/bin/second", nil
		}
		return "", os.ErrNotExist
	}
	t.Cleanup(func() { lookPath = orig })

	path, err := findTool("first", "second", "third")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/second", path)
}

func TestValidateOutput(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.jpg")
	assert.Error(t, validateOutput(missing))

	tiny := filepath.Join(dir, "tiny.jpg")
	require.NoError(t, os.WriteFile(tiny, []byte("x"), 0644))
	assert.Error(t, validateOutput(tiny))
	_, err := os.Stat(tiny)
	assert.True(t, os.IsNotExist(err), "undersized output is removed")

	ok := filepath.Join(dir, "ok.jpg")
	require.NoError(t, os.WriteFile(ok, make([]byte, 4096), 0644))
	assert.NoError(t, validateOutput(ok))
}

func TestConversionCancelledBeforeStart(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "/usr/bin/gs", nil }
	t.Cleanup(func() { lookPath = orig })

	token := stop.NewToken()
	token.Stop()

	assert.ErrorIs(t, EPSToJPEG(token, "in.eps", "out.jpg"), ErrCancelled)
	assert.ErrorIs(t, SVGToJPEG(token, "in.svg", "out.jpg"), ErrCancelled)
}

func TestRunRealProcess(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("no /bin/true on this platform")
	}

	assert.NoError(t, run(stop.NewToken(), frameTimeout, "/bin/true"))

	err := run(stop.NewToken(), frameTimeout, "/bin/false")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCancelled))
}

func TestRunCancelsProcess(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("no /bin/sleep on this platform")
	}

	token := stop.NewToken()
	go func() {
		token.Stop()
	}()

	err := run(token, frameTimeout, "/bin/sleep", "30")
	assert.ErrorIs(t, err, ErrCancelled)
}
