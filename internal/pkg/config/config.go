package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for our program, parsed from various sources
// The `mapstructure` tags are used to map the fields to the viper configuration
type Config struct {
	Job     string `mapstructure:"job"`
	JobPath string

	InputDir  string `mapstructure:"input"`
	OutputDir string `mapstructure:"output"`

	// Provider
	Provider string   `mapstructure:"provider"`
	APIKeys  []string `mapstructure:"api-key"`
	KeyFile  string   `mapstructure:"key-file"`
	Model    string   `mapstructure:"model"`

	// Batch behaviour
	WorkersCount    int     `mapstructure:"workers"`
	DelaySeconds    float64 `mapstructure:"delay"`
	AutoRetry       bool    `mapstructure:"auto-retry"`
	FileTimeoutSecs int     `mapstructure:"file-timeout"`

	// Output shaping
	RenameEnabled bool   `mapstructure:"rename"`
	AutoCategory  bool   `mapstructure:"auto-category"`
	AutoFoldering bool   `mapstructure:"auto-foldering"`
	EmbedEnabled  bool   `mapstructure:"embed"`
	KeywordCount  int    `mapstructure:"keywords"`
	Priority      string `mapstructure:"priority"`

	// External tools
	ExiftoolPath    string `mapstructure:"exiftool-path"`
	GhostscriptPath string `mapstructure:"ghostscript-path"`
	RsvgConvertPath string `mapstructure:"rsvg-convert-path"`
	FFmpegPath      string `mapstructure:"ffmpeg-path"`
	FFprobePath     string `mapstructure:"ffprobe-path"`

	// Video sampling
	FrameCount int `mapstructure:"frames"`

	// Logging
	NoStdoutLogging  bool   `mapstructure:"no-stdout-log"`
	StdoutLogLevel   string `mapstructure:"log-level"`
	LogFileOutputDir string `mapstructure:"log-file-output-dir"`
	LogFileLevel     string `mapstructure:"log-file-level"`

	// Prometheus and metrics
	Prometheus       bool   `mapstructure:"prometheus"`
	PrometheusPrefix string `mapstructure:"prometheus-prefix"`
	MetricsPort      int    `mapstructure:"metrics-port"`
}

var (
	config *Config
	once   sync.Once
)

// InitConfig initializes the configuration
// Flags -> Env -> Config file
// Latest has precedence over the rest
func InitConfig() error {
	var err error
	once.Do(func() {
		config = &Config{}

		if configFile := viper.GetString("config-file"); configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				err = homeErr
				return
			}

			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName("autometa-config")
		}

		viper.SetEnvPrefix("AUTOMETA")
		replacer := strings.NewReplacer("-", "_", ".", "_")
		viper.SetEnvKeyReplacer(replacer)
		viper.AutomaticEnv()

		if readErr := viper.ReadInConfig(); readErr == nil {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}

		err = viper.Unmarshal(config)
	})
	return err
}

// BindFlags binds the flags to the viper configuration
// This is needed because viper doesn't support same flag name accross multiple commands
func BindFlags(flagSet *pflag.FlagSet) {
	flagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})
}

// Get returns the config struct
func Get() *Config {
	return config
}

// GenerateBatchConfig validates and post-processes the configuration before a run
func GenerateBatchConfig() error {
	if config.InputDir == "" {
		return fmt.Errorf("no input directory specified")
	}
	if info, err := os.Stat(config.InputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("input directory %s is not a directory", config.InputDir)
	}

	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(config.InputDir, "output")
	}

	// If the job name isn't specified, we generate a random name
	if config.Job == "" {
		UUID, err := uuid.NewUUID()
		if err != nil {
			return err
		}
		config.Job = UUID.String()
	}
	config.JobPath = filepath.Join("jobs", config.Job)

	keys, err := LoadAPIKeys()
	if err != nil {
		return err
	}
	config.APIKeys = keys

	if config.WorkersCount < 1 {
		config.WorkersCount = 1
	}
	if config.KeywordCount < 1 {
		config.KeywordCount = 49
	}
	if config.FrameCount < 1 {
		config.FrameCount = 3
	}
	if config.FileTimeoutSecs < 1 {
		config.FileTimeoutSecs = 120
	}
	if config.Priority == "" {
		config.Priority = "Detailed"
	}

	return nil
}

// LoadAPIKeys merges the flag-supplied keys with the key file contents.
// API keys can come from the flag list and/or a dotenv-style key file.
func LoadAPIKeys() ([]string, error) {
	keys := append([]string{}, config.APIKeys...)
	if config.KeyFile != "" {
		fileKeys, err := readKeyFile(config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		keys = append(keys, fileKeys...)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no API keys provided, use --api-key or --key-file")
	}
	return keys, nil
}

// readKeyFile loads API keys from a dotenv-style file: every value is a key,
// sorted by variable name so the rotation order is stable between runs.
func readKeyFile(path string) ([]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	// map iteration order is random
	sort.Strings(names)

	keys := make([]string, 0, len(env))
	for _, name := range names {
		if value := strings.TrimSpace(env[name]); value != "" {
			keys = append(keys, value)
		}
	}
	return keys, nil
}
