package log

import (
	"log/slog"
	"strings"
)

// Config holds the configuration for the logger
type Config struct {
	StdoutEnabled bool
	StdoutLevel   slog.Level
	FileOutputDir string
	FilePrefix    string
	FileLevel     slog.Level
}

func defaultConfig() *Config {
	return &Config{
		StdoutEnabled: true,
		StdoutLevel:   slog.LevelInfo,
	}
}

// ParseLevel maps a level name to its slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
