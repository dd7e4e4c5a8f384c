// Package convert wraps the external tools used to turn non-raster inputs
// into JPEGs a provider can take: Ghostscript for EPS/AI, rsvg-convert (with
// a Ghostscript fallback) for SVG, and ffmpeg/ffprobe for video frames.
// Every wrapper polls the stop token and terminates the subprocess when a
// cancellation is observed.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/stop"
)

var (
	// ErrToolNotFound means the required executable is not on PATH
	ErrToolNotFound = errors.New("conversion tool not found")

	// ErrCancelled means a stop request interrupted the conversion
	ErrCancelled = errors.New("conversion cancelled")

	// ErrNoFrames means frame extraction produced nothing usable
	ErrNoFrames = errors.New("no frames extracted")
)

const (
	// vectorTimeout caps one Ghostscript/rsvg-convert run
	vectorTimeout = 180 * time.Second

	// frameTimeout caps one ffmpeg frame grab
	frameTimeout = 60 * time.Second

	// minOutputBytes rejects conversion outputs too small to be a real image
	minOutputBytes = 100

	// cancelPoll is how often a running subprocess checks the stop token
	cancelPoll = 100 * time.Millisecond
)

var logger = log.NewFieldedLogger(&log.Fields{"component": "convert"})

// lookPath is swapped in tests to fake tool presence
var lookPath = exec.LookPath

// findTool returns the first candidate present on PATH
func findTool(candidates ...string) (string, error) {
	for _, name := range candidates {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(candidates, ", "))
}

func ghostscriptNames() []string {
	if runtime.GOOS == "windows" {
		return []string{"gswin64c", "gswin32c", "gs"}
	}
	return []string{"gs"}
}

// run executes the tool, killing it when the token is raised or the timeout
// elapses. Output is discarded; only the exit status matters to callers.
func run(t *stop.Token, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", filepath.Base(name), err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(cancelPoll)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return fmt.Errorf("%s timed out after %s", filepath.Base(name), timeout)
				}
				return fmt.Errorf("%s: %w", filepath.Base(name), err)
			}
			return nil
		case <-ticker.C:
			if t.Stopped() {
				cancel()
				<-done
				return ErrCancelled
			}
		}
	}
}

// validateOutput rejects missing or implausibly small conversion results,
// removing the file so a half-written output never reaches the provider.
func validateOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("conversion produced no output: %w", err)
	}
	if info.Size() <= minOutputBytes {
		os.Remove(path)
		return fmt.Errorf("conversion output too small (%d bytes)", info.Size())
	}
	return nil
}

// EPSToJPEG rasterizes an EPS or AI file with Ghostscript
func EPSToJPEG(t *stop.Token, inputPath, outputPath string) error {
	gs, err := findTool(ghostscriptNames()...)
	if err != nil {
		return err
	}
	if t.Stopped() {
		return ErrCancelled
	}

	logger.Info("rasterizing vector", "file", filepath.Base(inputPath))
	err = run(t, vectorTimeout, gs,
		"-sDEVICE=jpeg",
		"-dEPSCrop",
		"-dJPEGQ=90",
		"-dBATCH",
		"-dNOPAUSE",
		"-dSAFER",
		"-dGraphicsAlphaBits=4",
		"-dTextAlphaBits=4",
		"-sOutputFile="+outputPath,
		inputPath,
	)
	if err != nil {
		os.Remove(outputPath)
		return err
	}
	return validateOutput(outputPath)
}

// SVGToJPEG rasterizes an SVG. rsvg-convert is preferred; when it is not
// installed, Ghostscript is tried as a lower-fidelity fallback.
func SVGToJPEG(t *stop.Token, inputPath, outputPath string) error {
	if t.Stopped() {
		return ErrCancelled
	}

	if rsvg, err := findTool("rsvg-convert"); err == nil {
		logger.Info("rasterizing svg", "file", filepath.Base(inputPath), "tool", "rsvg-convert")
		err := run(t, vectorTimeout, rsvg,
			"--format", "png",
			"--background-color", "white",
			"--keep-aspect-ratio",
			"--output", outputPath,
			inputPath,
		)
		if err != nil {
			os.Remove(outputPath)
			return err
		}
		return validateOutput(outputPath)
	}

	gs, err := findTool(ghostscriptNames()...)
	if err != nil {
		return fmt.Errorf("%w: rsvg-convert, %s", ErrToolNotFound, strings.Join(ghostscriptNames(), ", "))
	}

	logger.Info("rasterizing svg", "file", filepath.Base(inputPath), "tool", "ghostscript")
	err = run(t, vectorTimeout, gs,
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=jpeg",
		"-dJPEGQ=95",
		"-r300",
		"-dGraphicsAlphaBits=4",
		"-dTextAlphaBits=4",
		"-sOutputFile="+outputPath,
		inputPath,
	)
	if err != nil {
		os.Remove(outputPath)
		return err
	}
	return validateOutput(outputPath)
}

// FramePositions returns the sampling points for n frames as fractions of the
// video duration. Duplicates from rounding are collapsed and order is
// ascending.
func FramePositions(n int) []float64 {
	var positions []float64
	switch {
	case n <= 1:
		positions = []float64{0.5}
	case n == 2:
		positions = []float64{0.25, 0.75}
	case n == 3:
		positions = []float64{0.2, 0.5, 0.8}
	case n == 4:
		positions = []float64{0.2, 0.4, 0.6, 0.8}
	default:
		for i := 0; i < n; i++ {
			positions = append(positions, float64(i)/float64(n-1))
		}
	}

	out := positions[:0]
	var last float64 = -1
	for _, p := range positions {
		if p != last {
			out = append(out, p)
			last = p
		}
	}
	return out
}

// VideoDuration probes the container duration in seconds via ffprobe
func VideoDuration(t *stop.Token, videoPath string) (float64, error) {
	ffprobe, err := findTool("ffprobe")
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(videoPath), err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("ffprobe returned unusable duration %q", strings.TrimSpace(string(out)))
	}
	return duration, nil
}

// ExtractFrames grabs numFrames JPEG frames evenly spread across the video
// into outDir. Individual grab failures are skipped; zero survivors is
// ErrNoFrames. On cancellation already-written frames are removed.
func ExtractFrames(t *stop.Token, videoPath, outDir string, numFrames int) ([]string, error) {
	ffmpeg, err := findTool("ffmpeg")
	if err != nil {
		return nil, err
	}

	duration, err := VideoDuration(t, videoPath)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	positions := FramePositions(numFrames)
	logger.Info("extracting frames", "file", filepath.Base(videoPath), "count", len(positions))

	var frames []string
	for i, pos := range positions {
		if t.Stopped() {
			removeAll(frames)
			return nil, ErrCancelled
		}

		framePath := filepath.Join(outDir, fmt.Sprintf("%s_frame%d.jpg", base, i+1))
		seek := strconv.FormatFloat(pos*duration, 'f', 3, 64)

		err := run(t, frameTimeout, ffmpeg,
			"-y",
			"-ss", seek,
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			framePath,
		)
		if errors.Is(err, ErrCancelled) {
			os.Remove(framePath)
			removeAll(frames)
			return nil, ErrCancelled
		}
		if err != nil {
			logger.Warn("frame grab failed", "file", filepath.Base(videoPath), "position", seek, "err", err.Error())
			os.Remove(framePath)
			continue
		}
		if err := validateOutput(framePath); err != nil {
			logger.Warn("frame discarded", "file", filepath.Base(videoPath), "err", err.Error())
			continue
		}
		frames = append(frames, framePath)
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
