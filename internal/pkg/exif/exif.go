// Package exif embeds titles, descriptions and keywords into output files by
// driving an exiftool subprocess. The embed outcome is a (proceed, status)
// pair: proceed=false tells the pipeline the file must count as failed or
// stopped, while proceed=true with a non-ok status records a best-effort
// degradation the batch can live with.
package exif

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/internal/pkg/utils"
	"github.com/riiicil/autometa/pkg/models"
)

// Status is the embed outcome tag
type Status string

const (
	StatusOK           Status = "ok"
	StatusFailed       Status = "failed"
	StatusNoMetadata   Status = "no_metadata"
	StatusToolNotFound Status = "tool_not_found"
	StatusCancelled    Status = "cancelled"
)

const (
	// runTimeout caps one exiftool invocation
	runTimeout = 30 * time.Second

	// maxTitleLength is where titles get truncated on a sentence boundary
	maxTitleLength = 200

	// maxDescriptionLength is the IPTC-safe description cap
	maxDescriptionLength = 2000

	// maxKeywordLength is the IPTC keyword field cap
	maxKeywordLength = 64
)

var logger = log.NewFieldedLogger(&log.Fields{"component": "exif"})

// lookPath is swapped in tests to fake exiftool presence
var lookPath = exec.LookPath

// tag strategies by output extension
type strategy int

const (
	strategyXMPIPTC strategy = iota // jpeg family: XMP-dc plus IPTC mirrors
	strategyXMPOnly                 // ai, mp4, mov: containers without IPTC
	strategyEPS                     // eps: flat PostScript-era tag set
	strategyGeneric                 // everything else: plain XMP-dc
)

func strategyFor(path string) strategy {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
		return strategyXMPIPTC
	case ".ai", ".mp4", ".mov":
		return strategyXMPOnly
	case ".eps":
		return strategyEPS
	}
	return strategyGeneric
}

var (
	controlRunes = regexp.MustCompile(`[\r\n\t]+`)
	multiSpace   = regexp.MustCompile(`\s+`)
	unsafeRunes  = regexp.MustCompile(`[^\w\s\-\.\,]`)
	nonWordRunes = regexp.MustCompile(`[^\w\s]`)
)

// SanitizeText flattens whitespace, swaps colons for dashes and strips
// punctuation that breaks downstream field parsing. A positive maxLength
// truncates the result.
func SanitizeText(text string, maxLength int) string {
	s := controlRunes.ReplaceAllString(text, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ":", " -")
	s = unsafeRunes.ReplaceAllString(s, "")
	if maxLength > 0 && len(s) > maxLength {
		s = strings.TrimSpace(utils.CutString(s, maxLength))
	}
	return s
}

// SanitizeTitle sanitizes and truncates a title at the last sentence boundary
// under the cap, falling back to a hard cut with a closing period.
func SanitizeTitle(title string) string {
	s := SanitizeText(title, 0)
	if s == "" {
		return ""
	}
	if len(s) <= maxTitleLength {
		if !strings.HasSuffix(s, ".") && len(s) < maxTitleLength {
			s += "."
		}
		return s
	}

	truncated := utils.CutString(s, maxTitleLength)
	if idx := strings.LastIndex(truncated, "."); idx > 0 && idx < maxTitleLength-1 {
		return s[:idx+1]
	}
	return utils.CutString(s, maxTitleLength-1) + "."
}

// SanitizeKeyword strips punctuation and caps the keyword at the IPTC field
// limit. Empty results mean the keyword should be dropped.
func SanitizeKeyword(keyword string) string {
	s := controlRunes.ReplaceAllString(keyword, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	s = nonWordRunes.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) > maxKeywordLength {
		s = strings.TrimSpace(utils.CutString(s, maxKeywordLength))
	}
	return s
}

// cleanKeywords sanitizes and dedupes the tag list, preserving order
func cleanKeywords(tags []string, limit int) []string {
	if limit < 1 || limit > 100 {
		limit = models.MaxKeywords
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := SanitizeKeyword(tag)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Embed writes the metadata into outputPath, copying inputPath there first
// when it does not exist yet. proceed=false means the pipeline must treat the
// file as stopped or failed; proceed=true with status != ok is best-effort
// degradation.
func Embed(t *stop.Token, inputPath, outputPath string, md *models.Metadata, keywordLimit int) (bool, Status) {
	if t.Stopped() {
		return false, StatusCancelled
	}

	if _, err := os.Stat(outputPath); err != nil {
		if err := copyFile(inputPath, outputPath); err != nil {
			logger.Error("copy to output failed", "file", filepath.Base(inputPath), "err", err.Error())
			return false, StatusFailed
		}
	}

	if t.Stopped() {
		return false, StatusCancelled
	}

	title := SanitizeTitle(md.Title)
	description := SanitizeText(md.Description, maxDescriptionLength)
	keywords := cleanKeywords(md.Tags, keywordLimit)
	if title == "" && description == "" && len(keywords) == 0 {
		return true, StatusNoMetadata
	}

	exiftool, err := lookPath("exiftool")
	if err != nil {
		logger.Warn("exiftool not found, skipping embed", "file", filepath.Base(outputPath))
		return true, StatusToolNotFound
	}

	// Clear pass first so stale tags from a previous run never survive.
	// A failed clear is only a warning; the write pass overwrites anyway.
	if err := runExiftool(t, exiftool, clearArgs(outputPath)); err != nil {
		if t.Stopped() {
			return false, StatusCancelled
		}
		logger.Warn("clearing old tags failed", "file", filepath.Base(outputPath), "err", err.Error())
	}

	if t.Stopped() {
		return false, StatusCancelled
	}

	if err := runExiftool(t, exiftool, writeArgs(outputPath, title, description, keywords)); err != nil {
		if t.Stopped() {
			return false, StatusCancelled
		}
		logger.Error("embedding failed", "file", filepath.Base(outputPath), "err", err.Error())
		return true, StatusFailed
	}

	stats.MetadataEmbedsIncr()
	logger.Info("metadata embedded", "file", filepath.Base(outputPath))
	return true, StatusOK
}

func clearArgs(path string) []string {
	args := []string{"-overwrite_original"}
	switch strategyFor(path) {
	case strategyXMPIPTC:
		args = append(args,
			"-XMP-dc:Title=", "-XMP-dc:Description=", "-XMP-dc:Subject=",
			"-IPTC:ObjectName=", "-IPTC:Caption-Abstract=", "-IPTC:Keywords=",
		)
	case strategyXMPOnly:
		args = append(args,
			"-XMP-dc:Title=", "-XMP-dc:Description=", "-XMP-dc:Subject=",
			"-XMP:Title=", "-XMP:Description=", "-XMP:Subject=",
		)
	case strategyEPS:
		args = append(args,
			"-Title=", "-ObjectName=", "-Keywords=", "-Subject=",
			"-XPComment=", "-UserComment=", "-ImageDescription=",
			"-IPTC:Headline=", "-IPTC:Caption-Abstract=",
		)
	default:
		args = append(args, "-XMP-dc:Title=", "-XMP-dc:Description=", "-XMP-dc:Subject=")
	}
	return append(args, path)
}

func writeArgs(path, title, description string, keywords []string) []string {
	args := []string{"-overwrite_original", "-charset", "UTF8", "-codedcharacterset=utf8"}

	switch strategyFor(path) {
	case strategyXMPIPTC:
		if title != "" {
			args = append(args, "-XMP-dc:Title="+title, "-IPTC:ObjectName="+truncate(title, maxKeywordLength))
		}
		if description != "" {
			args = append(args, "-XMP-dc:Description="+description, "-IPTC:Caption-Abstract="+description)
		}
		for _, kw := range keywords {
			args = append(args, "-XMP-dc:Subject+="+kw, "-IPTC:Keywords+="+kw)
		}
	case strategyEPS:
		if title != "" {
			short := truncate(title, 160)
			args = append(args, "-Title="+short, "-ObjectName="+short, "-IPTC:Headline="+truncate(short, maxKeywordLength))
		}
		if description != "" {
			args = append(args, "-XPComment="+description, "-UserComment="+description,
				"-ImageDescription="+description, "-IPTC:Caption-Abstract="+description)
		}
		for _, kw := range keywords {
			args = append(args, "-Keywords+="+kw, "-Subject+="+kw)
		}
	default:
		if title != "" {
			args = append(args, "-XMP-dc:Title="+title)
		}
		if description != "" {
			args = append(args, "-XMP-dc:Description="+description)
		}
		for _, kw := range keywords {
			args = append(args, "-XMP-dc:Subject+="+kw)
		}
	}

	return append(args, path)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(utils.CutString(s, n))
}

// runExiftool executes one exiftool pass, killing it when the token is raised
func runExiftool(t *stop.Token, exiftool string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exiftool, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting exiftool: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("exiftool: %w", err)
			}
			return nil
		case <-ticker.C:
			if t.Stopped() {
				cancel()
				<-done
				return fmt.Errorf("exiftool interrupted by stop request")
			}
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
