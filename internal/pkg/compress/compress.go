// Package compress shrinks raster images to the upload budget before they are
// sent to a provider. Anything over the byte or dimension cap is downscaled
// and re-encoded as JPEG into a scratch folder; smaller files pass through
// untouched.
package compress

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/stop"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// TempFolderName is the scratch directory created under the output dir
	TempFolderName = "temp_compressed"

	// maxSizeBytes is the upload budget; files under it keep their bytes
	maxSizeBytes = 2 * 1024 * 1024

	// maxDimension caps the longest side in pixels
	maxDimension = 300

	// baseQuality is the starting JPEG quality before the adaptive reduction
	baseQuality = 20
)

var logger *log.FieldedLogger

func init() {
	logger = log.NewFieldedLogger(&log.Fields{"component": "compress"})
}

// TempDir returns the scratch folder under dir, creating it if needed
func TempDir(dir string) (string, error) {
	path := filepath.Join(dir, TempFolderName)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("creating scratch folder: %w", err)
	}
	return path, nil
}

// Cleanup removes every file in the scratch folder, then the folder itself.
// Missing folders are not an error.
func Cleanup(path string) error {
	if path == "" {
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			if err := os.Remove(filepath.Join(path, entry.Name())); err != nil {
				return err
			}
		}
	}
	return os.Remove(path)
}

// adaptiveQuality lowers the JPEG quality for larger inputs: one point per
// 10 MiB of input, floored at 10.
func adaptiveQuality(sizeBytes int64) int {
	mb := sizeBytes / (1024 * 1024)
	if mb > 50 {
		mb = 50
	}
	q := baseQuality - int(mb/10)
	if q < 10 {
		q = 10
	}
	return q
}

// Compress re-encodes inputPath into tempDir when it exceeds the size or
// dimension budget. It returns the path to use for the upload and whether a
// compressed copy was produced; on cancellation or no-op the original path
// comes back with compressed=false. The caller owns deleting the returned
// temp file.
func Compress(t *stop.Token, inputPath, tempDir string) (string, bool, error) {
	if t != nil && t.Stopped() {
		return inputPath, false, nil
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return inputPath, false, fmt.Errorf("stat %s: %w", filepath.Base(inputPath), err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return inputPath, false, fmt.Errorf("opening %s: %w", filepath.Base(inputPath), err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return inputPath, false, fmt.Errorf("decoding %s: %w", filepath.Base(inputPath), err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	needsResize := width > maxDimension || height > maxDimension
	needsCompress := info.Size() > maxSizeBytes
	if !needsResize && !needsCompress {
		return inputPath, false, nil
	}

	if t != nil && t.Stopped() {
		return inputPath, false, nil
	}

	if needsResize {
		img = resize(img, maxDimension)
	}

	// Flatten onto white so transparent PNG regions do not encode as black
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(tempDir, base+"_compressed.jpg")

	quality := adaptiveQuality(info.Size())
	if err := encodeJPEG(flat, outPath, quality); err != nil {
		return inputPath, false, err
	}

	if t != nil && t.Stopped() {
		os.Remove(outPath)
		return inputPath, false, nil
	}

	// One stronger pass when the first encode still busts the budget
	if out, err := os.Stat(outPath); err == nil && out.Size() > maxSizeBytes && quality > 15 {
		logger.Info("compressed copy still large, re-encoding", "file", filepath.Base(inputPath))
		stronger := quality - 10
		if stronger < 10 {
			stronger = 10
		}
		if err := encodeJPEG(flat, outPath, stronger); err != nil {
			logger.Warn("stronger re-encode failed, keeping first pass", "err", err.Error())
		}
	}

	if out, err := os.Stat(outPath); err == nil {
		logger.Debug("compressed for upload",
			"file", filepath.Base(inputPath),
			"from", humanize.Bytes(uint64(info.Size())),
			"to", humanize.Bytes(uint64(out.Size())))
	}

	return outPath, true, nil
}

// resize scales img so its longest side equals maxDim, preserving aspect ratio
func resize(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scale := float64(maxDim) / float64(width)
	if height > width {
		scale = float64(maxDim) / float64(height)
	}
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, path string, quality int) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}
