// Package pipeline turns one input file into a terminal processing status.
// Each kind (raster image, vector, video) shares the same tail: provider
// call, copy to output, optional metadata embed, optional rename-by-title,
// CSV export. Failures map onto the status vocabulary deterministically so
// the orchestrator can drive its retry policy off the status alone.
package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/riiicil/autometa/internal/pkg/compress"
	"github.com/riiicil/autometa/internal/pkg/convert"
	"github.com/riiicil/autometa/internal/pkg/exif"
	"github.com/riiicil/autometa/internal/pkg/export"
	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/provider"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/internal/pkg/utils"
	"github.com/riiicil/autometa/pkg/models"
)

const (
	// minInputBytes rejects empty or truncated inputs before any work happens
	minInputBytes = 100

	// renameAttempts bounds the " (N)" collision search
	renameAttempts = 50

	// csvFolderName is the marketplace CSV subfolder under the output dir
	csvFolderName = "metadata_csv"
)

// Options carries the per-batch pipeline configuration
type Options struct {
	OutputDir string

	// TempDir is the scratch folder for compressed copies, rasters and frames.
	// The caller owns its lifecycle.
	TempDir string

	EmbedEnabled  bool
	RenameEnabled bool
	AutoCategory  bool
	AutoFoldering bool

	KeywordCount int
	Priority     string
	Model        string
	FrameCount   int
}

// Result is the outcome of one pipeline run for one file
type Result struct {
	Status     models.ProcessingStatus
	Metadata   *models.Metadata
	OutputPath string
}

// Pipeline processes files against one provider instance
type Pipeline struct {
	provider provider.Provider
	opts     Options
	logger   *log.FieldedLogger
}

// New builds a pipeline over the given provider
func New(p provider.Provider, opts Options) *Pipeline {
	return &Pipeline{
		provider: p,
		opts:     opts,
		logger:   log.NewFieldedLogger(&log.Fields{"component": "pipeline"}),
	}
}

// outputPathFor mirrors the input basename under the output dir, sub-foldered
// by kind when auto-foldering is on.
func (p *Pipeline) outputPathFor(item *models.WorkItem) string {
	dir := p.opts.OutputDir
	if p.opts.AutoFoldering {
		switch item.Kind {
		case models.KindImage:
			dir = filepath.Join(dir, "Images")
		case models.KindVector:
			dir = filepath.Join(dir, "Vectors")
		case models.KindVideo:
			dir = filepath.Join(dir, "Videos")
		}
	}
	return filepath.Join(dir, filepath.Base(item.Path))
}

// Process runs the full pipeline for one work item and classifies the outcome
func (p *Pipeline) Process(t *stop.Token, item *models.WorkItem, apiKey string) Result {
	if t.Stopped() {
		return Result{Status: models.StatusStopped}
	}

	info, err := os.Stat(item.Path)
	if err != nil {
		p.logger.Warn("input disappeared before dispatch", "file", filepath.Base(item.Path))
		return Result{Status: models.StatusFailedInputMissing}
	}
	if info.Size() < minInputBytes {
		return Result{Status: models.StatusFailedEmptyInput}
	}

	outputPath := p.outputPathFor(item)
	if utils.FileExists(outputPath) {
		p.logger.Info("output already exists, skipping", "file", filepath.Base(item.Path))
		return Result{Status: models.StatusSkippedAlreadyExists, OutputPath: outputPath}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Result{Status: models.StatusFailedCopyToOutput}
	}

	switch item.Kind {
	case models.KindImage:
		return p.processImage(t, item, outputPath, apiKey)
	case models.KindVector:
		return p.processVector(t, item, outputPath, apiKey)
	case models.KindVideo:
		return p.processVideo(t, item, outputPath, apiKey)
	}
	return Result{Status: models.StatusFailedUnsupportedFormat}
}

func (p *Pipeline) processImage(t *stop.Token, item *models.WorkItem, outputPath, apiKey string) Result {
	isPNG := strings.EqualFold(filepath.Ext(item.Path), ".png")

	// Compression is best-effort: an oversized original still goes out as-is
	uploadPath, compressed, err := compress.Compress(t, item.Path, p.opts.TempDir)
	if err != nil {
		p.logger.Warn("compression failed, sending original", "file", filepath.Base(item.Path), "err", err.Error())
		uploadPath = item.Path
	}
	if compressed {
		defer os.Remove(uploadPath)
	}

	md, err := p.provider.GetMetadata(t, []string{uploadPath}, apiKey, provider.Options{
		PNG:          isPNG,
		Model:        p.opts.Model,
		KeywordLimit: p.opts.KeywordCount,
		Priority:     p.opts.Priority,
	})
	if err != nil {
		return Result{Status: classifyProviderError(err)}
	}

	return p.finalize(t, item, md, outputPath)
}

func (p *Pipeline) processVector(t *stop.Token, item *models.WorkItem, outputPath, apiKey string) Result {
	base := strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path))
	rasterPath := filepath.Join(p.opts.TempDir, base+"_raster.jpg")
	// the temp raster never outlives the attempt, whatever the exit path
	defer os.Remove(rasterPath)

	var err error
	if strings.EqualFold(filepath.Ext(item.Path), ".svg") {
		err = convert.SVGToJPEG(t, item.Path, rasterPath)
	} else {
		err = convert.EPSToJPEG(t, item.Path, rasterPath)
	}
	if err != nil {
		if errors.Is(err, convert.ErrCancelled) {
			return Result{Status: models.StatusStopped}
		}
		p.logger.Warn("rasterization failed", "file", filepath.Base(item.Path), "err", err.Error())
		return Result{Status: models.StatusFailedFormatConversion}
	}

	uploadPath, compressed, err := compress.Compress(t, rasterPath, p.opts.TempDir)
	if err != nil {
		uploadPath = rasterPath
	}
	if compressed {
		defer os.Remove(uploadPath)
	}

	md, err := p.provider.GetMetadata(t, []string{uploadPath}, apiKey, provider.Options{
		PNG:              true,
		Model:            p.opts.Model,
		KeywordLimit:     p.opts.KeywordCount,
		Priority:         p.opts.Priority,
		VectorConversion: true,
	})
	if err != nil {
		return Result{Status: classifyProviderError(err)}
	}

	// metadata came from the raster, but the original vector is the deliverable
	return p.finalize(t, item, md, outputPath)
}

func (p *Pipeline) processVideo(t *stop.Token, item *models.WorkItem, outputPath, apiKey string) Result {
	frames, err := convert.ExtractFrames(t, item.Path, p.opts.TempDir, p.opts.FrameCount)
	if err != nil {
		if errors.Is(err, convert.ErrCancelled) {
			return Result{Status: models.StatusStopped}
		}
		p.logger.Warn("frame extraction failed", "file", filepath.Base(item.Path), "err", err.Error())
		return Result{Status: models.StatusFailedFrameExtraction}
	}
	defer func() {
		for _, frame := range frames {
			os.Remove(frame)
		}
	}()

	uploads := make([]string, 0, len(frames))
	for _, frame := range frames {
		uploadPath, compressed, err := compress.Compress(t, frame, p.opts.TempDir)
		if err != nil {
			uploadPath = frame
		}
		if compressed {
			defer os.Remove(uploadPath)
		}
		uploads = append(uploads, uploadPath)
	}

	md, err := p.provider.GetMetadata(t, uploads, apiKey, provider.Options{
		Video:        true,
		Model:        p.opts.Model,
		KeywordLimit: p.opts.KeywordCount,
		Priority:     p.opts.Priority,
	})
	if err != nil {
		return Result{Status: classifyProviderError(err)}
	}

	return p.finalize(t, item, md, outputPath)
}

// classifyProviderError maps a GetMetadata failure onto the status vocabulary
func classifyProviderError(err error) models.ProcessingStatus {
	if errors.Is(err, provider.ErrStopped) {
		return models.StatusStopped
	}
	return models.StatusFailedAPICall
}

// finalize copies the original to the output, embeds, renames and exports.
// Copy and embed outcomes decide the terminal status; rename and export are
// best-effort and never fail the file.
func (p *Pipeline) finalize(t *stop.Token, item *models.WorkItem, md *models.Metadata, outputPath string) Result {
	status := models.StatusProcessedWithoutMetadata

	if p.opts.EmbedEnabled {
		proceed, embedStatus := exif.Embed(t, item.Path, outputPath, md, p.opts.KeywordCount)
		if !proceed {
			if embedStatus == exif.StatusCancelled {
				return Result{Status: models.StatusStopped, Metadata: md}
			}
			return Result{Status: models.StatusFailedCopyToOutput, Metadata: md}
		}
		switch embedStatus {
		case exif.StatusOK:
			status = models.StatusProcessedWithMetadata
		case exif.StatusNoMetadata, exif.StatusToolNotFound:
			status = models.StatusProcessedWithoutMetadata
		case exif.StatusFailed:
			status = models.StatusProcessedEmbedFailed
		default:
			status = models.StatusProcessedUnknownEmbed
		}
	} else {
		if err := utils.CopyFile(item.Path, outputPath); err != nil {
			p.logger.Error("copy to output failed", "file", filepath.Base(item.Path), "err", err.Error())
			return Result{Status: models.StatusFailedCopyToOutput, Metadata: md}
		}
	}

	finalPath := outputPath
	if p.opts.RenameEnabled && md.Title != "" {
		if renamed, err := p.renameByTitle(outputPath, md.Title); err == nil {
			finalPath = renamed
		} else {
			p.logger.Warn("rename failed, keeping original name", "file", filepath.Base(outputPath), "err", err.Error())
		}
	}

	csvDir := filepath.Join(p.opts.OutputDir, csvFolderName)
	if !export.Export(csvDir, filepath.Base(finalPath), md, export.Options{
		AutoCategory: p.opts.AutoCategory,
		IsVector:     item.Kind == models.KindVector,
		IsVideo:      item.Kind == models.KindVideo,
		MaxKeywords:  p.opts.KeywordCount,
	}) {
		p.logger.Warn("csv export incomplete", "file", filepath.Base(finalPath))
	}

	return Result{Status: status, Metadata: md, OutputPath: finalPath}
}

// renameByTitle moves the output to a sanitized version of the title,
// resolving collisions with a bounded " (N)" suffix search.
func (p *Pipeline) renameByTitle(outputPath, title string) (string, error) {
	name := utils.SanitizeFilename(title)
	if name == "" {
		return outputPath, nil
	}

	candidate := filepath.Join(filepath.Dir(outputPath), name+filepath.Ext(outputPath))
	if candidate == outputPath {
		return outputPath, nil
	}

	unique, err := utils.EnsureUniquePath(candidate, renameAttempts)
	if err != nil {
		return "", err
	}
	if err := os.Rename(outputPath, unique); err != nil {
		return "", err
	}
	return unique, nil
}
