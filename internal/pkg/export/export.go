// Package export appends processed-file metadata to one CSV per target
// marketplace. Each CSV gets its header exactly once and appends are
// serialized by a per-path mutex, so concurrent workers never interleave rows.
// Export is best-effort: a failing marketplace is logged and skipped, and the
// batch only cares whether most sinks took the row.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/utils"
	"github.com/riiicil/autometa/pkg/models"
)

const (
	// maxFieldLength is where titles and descriptions get truncated
	maxFieldLength = 200

	// successThreshold is how many of the five sinks must take the row for
	// the export to count as successful
	successThreshold = 3

	// defaultMaxKeywords applies when the caller passes no keyword cap
	defaultMaxKeywords = 49
)

var logger = log.NewFieldedLogger(&log.Fields{"component": "export"})

// Options carries the per-file export knobs
type Options struct {
	// AutoCategory fills the category columns, preferring the provider's
	// answer and falling back to keyword matching
	AutoCategory bool

	// IsVector marks the illustration column for Shutterstock
	IsVector bool

	// IsVideo selects the video category vocabulary
	IsVideo bool

	// MaxKeywords caps the exported keyword list; 0 means the default
	MaxKeywords int
}

// per-path append locks
var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

func lockFor(path string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	if l, ok := locks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	locks[path] = l
	return l
}

// SmartTruncate cuts s at the last sentence boundary under max, falling back
// to a hard cut with a closing period. Strings under the cap pass through.
func SmartTruncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	truncated := utils.CutString(s, max)
	if idx := strings.LastIndex(truncated, "."); idx > 0 && idx < max-1 {
		return s[:idx+1]
	}
	return utils.CutString(s, max-1) + "."
}

// sanitizeField flattens control characters and runs of whitespace
func sanitizeField(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// keepRunes drops every rune not accepted by keep
func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isWordRune(r rune) bool {
	return r == '_' || r == ' ' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		(r > 127)
}

// adobeTitle keeps hyphens and colons, truncates smartly and closes with a
// period per the Adobe Stock upload conventions.
func adobeTitle(title string) string {
	s := keepRunes(sanitizeField(title), func(r rune) bool {
		return isWordRune(r) || r == '-' || r == ':'
	})
	s = SmartTruncate(s, maxFieldLength)
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, ".") {
		if len(s) < maxFieldLength {
			s += "."
		} else {
			s = utils.CutString(s, len(s)-1) + "."
		}
	}
	return s
}

// adobeKeywords keeps hyphens only
func adobeKeywords(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := keepRunes(sanitizeField(tag), func(r rune) bool {
			return isWordRune(r) || r == '-'
		})
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return strings.Join(out, ", ")
}

// vecteezyTitle swaps colons for dashes and strips everything but hyphens
func vecteezyTitle(title string) string {
	s := strings.ReplaceAll(sanitizeField(title), ":", " -")
	s = keepRunes(s, func(r rune) bool {
		return isWordRune(r) || r == '-'
	})
	s = SmartTruncate(s, maxFieldLength)
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, ".") {
		if len(s) < maxFieldLength {
			s += "."
		} else {
			s = utils.CutString(s, len(s)-1) + "."
		}
	}
	return s
}

// vecteezyKeywords lowercases, strips all punctuation and removes the word
// "vector" (Vecteezy rejects it, including inside compounds).
func vecteezyKeywords(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.ToLower(sanitizeField(tag))
		cleaned = keepRunes(cleaned, isWordRune)
		cleaned = strings.Join(strings.Fields(strings.ReplaceAll(cleaned, "vector", "")), " ")
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return strings.Join(out, ", ")
}

// capTags dedupes preserving order and caps the list
func capTags(tags []string, max int) []string {
	if max < 1 {
		max = defaultMaxKeywords
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == max {
			break
		}
	}
	return out
}

// appendCSV writes the row through encoding/csv, emitting the header when the
// file is new or empty. The per-path lock serializes concurrent appenders.
func appendCSV(path string, header, row []string) error {
	l := lockFor(path)
	l.Lock()
	defer l.Unlock()

	needHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// appendRaw writes pre-quoted lines for the sinks whose upload parsers demand
// a quoting style encoding/csv will not produce.
func appendRaw(path, header, row string) error {
	l := lockFor(path)
	l.Lock()
	defer l.Unlock()

	needHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if needHeader {
		if _, err := f.WriteString(header + "\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(row + "\n")
	return err
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Export appends one row per marketplace CSV under csvDir. It returns true
// when at least three of the five sinks took the row.
func Export(csvDir, filename string, md *models.Metadata, opts Options) bool {
	if md.Empty() {
		logger.Warn("nothing to export", "file", filename)
		return false
	}
	if err := os.MkdirAll(csvDir, 0755); err != nil {
		logger.Error("creating csv dir failed", "dir", csvDir, "err", err.Error())
		return false
	}

	title := sanitizeField(md.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	description := SmartTruncate(sanitizeField(md.Description), maxFieldLength)
	if description == "" {
		description = title
	}
	title = SmartTruncate(title, maxFieldLength)

	tags := capTags(md.Tags, opts.MaxKeywords)
	joinedTags := strings.Join(tags, ", ")

	var adobeCategory, shutterCategory string
	if opts.AutoCategory {
		adobeCategory = adobeCategoryFor(md, tags)
		shutterCategory = shutterstockCategoryFor(md, tags, opts.IsVideo)
	}

	ok := 0
	fail := func(name string, err error) {
		logger.Warn("csv append failed", "marketplace", name, "file", filename, "err", err.Error())
	}

	if err := appendCSV(filepath.Join(csvDir, "adobe_stock_export.csv"),
		[]string{"Filename", "Title", "Keywords", "Category", "Releases"},
		[]string{filename, adobeTitle(title), adobeKeywords(tags), adobeCategory, ""},
	); err != nil {
		fail("adobe_stock", err)
	} else {
		ok++
		stats.CSVRowsExportedIncr()
	}

	illustration := ""
	if opts.IsVector {
		illustration = "yes"
	}
	if err := appendCSV(filepath.Join(csvDir, "shutterstock_export.csv"),
		[]string{"Filename", "Description", "Keywords", "Categories", "Editorial", "Mature content", "illustration"},
		[]string{filename, description, joinedTags, shutterCategory, "no", "", illustration},
	); err != nil {
		fail("shutterstock", err)
	} else {
		ok++
		stats.CSVRowsExportedIncr()
	}

	if err := appendRaw(filepath.Join(csvDir, "123rf_export.csv"),
		`oldfilename,"123rf_filename","description","keywords","country"`,
		fmt.Sprintf(`%s,"","%s","%s","ID"`,
			escapeQuotes(filename), escapeQuotes(description), escapeQuotes(joinedTags)),
	); err != nil {
		fail("123rf", err)
	} else {
		ok++
		stats.CSVRowsExportedIncr()
	}

	if err := appendRaw(filepath.Join(csvDir, "vecteezy_export.csv"),
		"Filename,Title,Description,Keywords,License,Id",
		fmt.Sprintf(`%s,%s,"%s","%s",pro,`,
			escapeQuotes(filename), escapeQuotes(vecteezyTitle(title)),
			escapeQuotes(description), escapeQuotes(vecteezyKeywords(tags))),
	); err != nil {
		fail("vecteezy", err)
	} else {
		ok++
		stats.CSVRowsExportedIncr()
	}

	if err := appendCSV(filepath.Join(csvDir, "depositphotos_export.csv"),
		[]string{"Filename", "description", "Keywords", "Nudity", "Editorial"},
		[]string{filename, description, joinedTags, "no", "no"},
	); err != nil {
		fail("depositphotos", err)
	} else {
		ok++
		stats.CSVRowsExportedIncr()
	}

	if ok < successThreshold {
		logger.Error("too many csv sinks failed", "file", filename, "succeeded", ok)
		return false
	}
	return true
}
