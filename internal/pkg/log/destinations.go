package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// destination is one sink for log entries
type destination interface {
	Enabled() bool
	Level() slog.Level
	Write(entry *logEntry)
	Close()
}

func initDestinations() []destination {
	var destinations []destination

	if cfg.StdoutEnabled {
		destinations = append(destinations, &stdoutDestination{level: cfg.StdoutLevel})
	}

	if cfg.FileOutputDir != "" {
		fileDest, err := newFileDestination(cfg.FileOutputDir, cfg.FilePrefix, cfg.FileLevel)
		if err != nil {
			slog.Error("unable to open log file, file logging disabled", "err", err.Error())
		} else {
			destinations = append(destinations, fileDest)
		}
	}

	return destinations
}

type stdoutDestination struct {
	level slog.Level
}

func (d *stdoutDestination) Enabled() bool     { return true }
func (d *stdoutDestination) Level() slog.Level { return d.level }
func (d *stdoutDestination) Close()            {}

func (d *stdoutDestination) Write(entry *logEntry) {
	fmt.Fprintln(os.Stdout, formatLogEntry(entry))
}

type fileDestination struct {
	level   slog.Level
	file    *os.File
	handler slog.Handler
}

func newFileDestination(dir, prefix string, level slog.Level) (*fileDestination, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s%s.log", prefix, time.Now().Format("20060102_150405"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &fileDestination{
		level:   level,
		file:    file,
		handler: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	}, nil
}

func (d *fileDestination) Enabled() bool     { return true }
func (d *fileDestination) Level() slog.Level { return d.level }

func (d *fileDestination) Write(entry *logEntry) {
	record := slog.NewRecord(entry.timestamp, entry.level, entry.msg, 0)
	record.Add(entry.args...)
	d.handler.Handle(context.Background(), record)
}

func (d *fileDestination) Close() {
	d.file.Close()
}
