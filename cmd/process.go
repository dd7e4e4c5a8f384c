package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/riiicil/autometa/internal/pkg/batch"
	"github.com/riiicil/autometa/internal/pkg/compress"
	"github.com/riiicil/autometa/internal/pkg/config"
	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/pipeline"
	"github.com/riiicil/autometa/internal/pkg/provider"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
	"github.com/spf13/cobra"
)

func addProcessCmd(root *cobra.Command) {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run a metadata batch over an input directory",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if cfg == nil {
				return fmt.Errorf("viper config is nil")
			}
			return config.GenerateBatchConfig()
		},
		RunE: runProcess,
	}

	processCmdFlags(processCmd)
	root.AddCommand(processCmd)
}

func processCmdFlags(processCmd *cobra.Command) {
	processCmd.PersistentFlags().StringP("input", "i", "", "input directory to process")
	processCmd.PersistentFlags().StringP("output", "o", "", "output directory (default <input>/output)")
	processCmd.PersistentFlags().String("job", "", "job name, used for metrics labels; random when empty")
	processCmd.PersistentFlags().String("provider", "gemini", "metadata provider (gemini, openai, openrouter, groq, blackbox, litellm)")
	processCmd.PersistentFlags().StringSlice("api-key", []string{}, "API key, repeatable")
	processCmd.PersistentFlags().String("key-file", "", "dotenv-style file whose values are API keys")
	processCmd.PersistentFlags().String("model", "", "model override, empty uses the provider default")
	processCmd.PersistentFlags().IntP("workers", "w", 1, "number of concurrent workers")
	processCmd.PersistentFlags().Float64("delay", 0, "delay in seconds between worker batches")
	processCmd.PersistentFlags().Bool("auto-retry", false, "retry retryable failures until their attempt budget runs out")
	processCmd.PersistentFlags().Int("file-timeout", 120, "per-file processing timeout in seconds")
	processCmd.PersistentFlags().Bool("rename", false, "rename outputs after the generated title")
	processCmd.PersistentFlags().Bool("auto-category", false, "resolve marketplace categories from the metadata")
	processCmd.PersistentFlags().Bool("auto-foldering", false, "sort outputs into Images/, Vectors/ and Videos/ subfolders")
	processCmd.PersistentFlags().Bool("embed", false, "embed metadata into the output files with exiftool")
	processCmd.PersistentFlags().Int("keywords", 49, "number of keywords to request")
	processCmd.PersistentFlags().String("priority", "Detailed", "prompt quality tier (Detailed, Balanced, Less)")
	processCmd.PersistentFlags().Int("frames", 3, "number of frames to sample per video")

	// External tool locations, prepended to PATH for the run
	processCmd.PersistentFlags().String("exiftool-path", "", "path to the exiftool binary")
	processCmd.PersistentFlags().String("ghostscript-path", "", "path to the ghostscript binary")
	processCmd.PersistentFlags().String("rsvg-convert-path", "", "path to the rsvg-convert binary")
	processCmd.PersistentFlags().String("ffmpeg-path", "", "path to the ffmpeg binary")
	processCmd.PersistentFlags().String("ffprobe-path", "", "path to the ffprobe binary")

	// Metrics flags
	processCmd.PersistentFlags().Bool("prometheus", false, "expose Prometheus metrics while the batch runs")
	processCmd.PersistentFlags().String("prometheus-prefix", "autometa:", "prefix for the exported Prometheus metric names")
	processCmd.PersistentFlags().Int("metrics-port", 9090, "port for the Prometheus metrics endpoint")
}

func runProcess(_ *cobra.Command, _ []string) error {
	if err := log.Start(&log.Config{
		StdoutEnabled: !cfg.NoStdoutLogging,
		StdoutLevel:   log.ParseLevel(cfg.StdoutLogLevel),
		FileOutputDir: cfg.LogFileOutputDir,
		FilePrefix:    "autometa",
		FileLevel:     log.ParseLevel(cfg.LogFileLevel),
	}); err != nil {
		return fmt.Errorf("starting logger: %w", err)
	}
	defer log.Stop()

	if err := stats.Init(); err != nil {
		return fmt.Errorf("initializing stats: %w", err)
	}
	if cfg.Prometheus {
		go serveMetrics(cfg.MetricsPort)
	}

	prependToolPaths()

	prov, err := provider.New(cfg.Provider, cfg.APIKeys)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tempDir, err := compress.TempDir(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer compress.Cleanup(tempDir)

	pipe := pipeline.New(prov, pipeline.Options{
		OutputDir:     cfg.OutputDir,
		TempDir:       tempDir,
		EmbedEnabled:  cfg.EmbedEnabled,
		RenameEnabled: cfg.RenameEnabled,
		AutoCategory:  cfg.AutoCategory,
		AutoFoldering: cfg.AutoFoldering,
		KeywordCount:  cfg.KeywordCount,
		Priority:      cfg.Priority,
		Model:         cfg.Model,
		FrameCount:    cfg.FrameCount,
	})

	token := stop.NewToken()
	go watchSignals(token)

	orchestrator := batch.New(pipe, batch.Options{
		InputDir:     cfg.InputDir,
		APIKeys:      cfg.APIKeys,
		Workers:      cfg.WorkersCount,
		DelaySeconds: cfg.DelaySeconds,
		AutoRetry:    cfg.AutoRetry,
		FileTimeout:  time.Duration(cfg.FileTimeoutSecs) * time.Second,
		Progress: func(completed, total int) {
			fmt.Printf("\r%d/%d files", completed, total)
		},
	})

	result, err := orchestrator.Run(token)
	fmt.Println()
	if err != nil {
		return err
	}
	if result.NoFiles {
		fmt.Println("No eligible files found in", cfg.InputDir)
		return nil
	}

	printSummary(result)
	return nil
}

// prependToolPaths puts the configured external tool directories at the front
// of PATH so discovery picks the requested binaries first
func prependToolPaths() {
	paths := []string{
		cfg.ExiftoolPath,
		cfg.GhostscriptPath,
		cfg.RsvgConvertPath,
		cfg.FFmpegPath,
		cfg.FFprobePath,
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			p = filepath.Dir(p)
		}
		os.Setenv("PATH", p+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", stats.PrometheusHandler())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		fmt.Println("metrics endpoint error:", err)
	}
}

// watchSignals turns the first SIGINT/SIGTERM into a stop request and lets a
// second one force the exit
func watchSignals(token *stop.Token) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	<-signalChan
	fmt.Println("\nreceived shutdown signal, finishing in-flight files...")
	token.Stop()

	<-signalChan
	fmt.Println("received second shutdown signal, forcing exit...")
	os.Exit(1)
}

func printSummary(result models.BatchResult) {
	fmt.Println("Batch finished:")
	fmt.Printf("  processed: %d\n", result.Processed)
	fmt.Printf("  failed:    %d\n", result.Failed)
	fmt.Printf("  skipped:   %d\n", result.Skipped)
	fmt.Printf("  stopped:   %d\n", result.Stopped)
	fmt.Printf("  total:     %d\n", result.Total)

	statsMap := stats.GetMap()
	keys := make([]string, 0, len(statsMap))
	for key := range statsMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println("Run stats:")
	for _, key := range keys {
		fmt.Printf("  %s: %v\n", key, statsMap[key])
	}
}
