package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/xhad/qafilter/internal/console"
	"github.com/xhad/qafilter/internal/models"
	cfgPkg "github.com/xhad/qafilter/pkg/config"
	"github.com/xhad/qafilter/pkg/pool"
	"github.com/xhad/qafilter/pkg/store"
)

type Config struct {
	ConfigPath string
	Source     string
	DBUrl      string
	OllamaURL  string
	Count      int
	Target     int
	MaxPerRun  int
	Refill     bool
	Schedule   string
	Stats      bool
	Clear      bool
	Delete     string
	Verbose    bool
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&config.Source, "source", "", "Filtered JSONL export to draw questions from")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (file pool when empty)")
	flag.StringVar(&config.OllamaURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.IntVar(&config.Count, "count", 0, "Generate this many questions and exit")
	flag.IntVar(&config.Target, "target", 0, "Pool size to refill towards (default 50)")
	flag.IntVar(&config.MaxPerRun, "max-per-run", 0, "Most questions added per refill (default 5)")
	flag.BoolVar(&config.Refill, "refill", false, "Top the pool up towards -target once and exit")
	flag.StringVar(&config.Schedule, "schedule", "", "Cron expression to refill on until interrupted")
	flag.BoolVar(&config.Stats, "stats", false, "Print pool statistics")
	flag.BoolVar(&config.Clear, "clear", false, "Remove every question from the pool")
	flag.StringVar(&config.Delete, "delete", "", "Remove the question with this id")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	return config
}

func loadConfig(config Config) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(config.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over the config file
	if config.Source != "" {
		cfg.Pool.Source = config.Source
	}
	if config.DBUrl != "" {
		cfg.Database.URL = config.DBUrl
	}
	if config.OllamaURL != "" {
		cfg.LLM.BaseURL = config.OllamaURL
	}
	if config.Target > 0 {
		cfg.Pool.Target = config.Target
	}
	if config.MaxPerRun > 0 {
		cfg.Pool.MaxPerRun = config.MaxPerRun
	}
	if config.Schedule != "" {
		cfg.Pool.Schedule = config.Schedule
	}

	var errs []error
	for _, e := range cfg.Validate() {
		errs = append(errs, e)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(config Config) error {
	cfg, err := loadConfig(config)
	if err != nil {
		return err
	}

	logger := console.NewLogger(os.Stderr, config.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder, s, err := pool.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	switch {
	case config.Stats:
		return printStats(ctx, s)
	case config.Clear:
		if err := s.Clear(ctx); err != nil {
			return err
		}
		color.Green("✓ Question pool cleared\n")
		return nil
	case config.Delete != "":
		deleted, err := s.Delete(ctx, config.Delete)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("question %s not found", config.Delete)
		}
		color.Green("✓ Deleted %s\n", config.Delete)
		return nil
	case config.Count > 0:
		return runBatch(ctx, builder, config.Count)
	case cfg.Pool.Schedule != "":
		return runScheduled(ctx, builder, cfg.Pool, logger)
	case config.Refill:
		result, err := builder.Refill(ctx, cfg.Pool.Target, cfg.Pool.MaxPerRun, nil)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	flag.Usage()
	return nil
}

func runBatch(ctx context.Context, builder *pool.Builder, count int) error {
	color.Blue("\nGenerating %d questions\n", count)

	bar := console.ProgressBar(count, "🤖 Translating and answering...")
	result, err := builder.ProcessBatch(ctx, count, func(done, total int, q *models.Question, err error) {
		bar.Set(done)
	})
	bar.Finish()
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

// runScheduled refills the pool on every cron tick until ctx is cancelled.
// Ticks that arrive while a refill is still running are skipped.
func runScheduled(ctx context.Context, builder *pool.Builder, cfg cfgPkg.PoolConfig, logger *slog.Logger) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(cfg.Schedule, func() {
		result, err := builder.Refill(ctx, cfg.Target, cfg.MaxPerRun, nil)
		if err != nil {
			logger.Error("refill failed", "error", err)
			return
		}
		logger.Info("refill finished", "added", result.Added, "failed", result.Failed, "pool", result.PoolSize)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	logger.Info("scheduler started", "schedule", cfg.Schedule, "target", cfg.Target)
	c.Start()

	<-ctx.Done()
	logger.Info("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

func printStats(ctx context.Context, s store.Store) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func printResult(result pool.BatchResult) {
	color.Green("✓ Added %d of %d questions (%d failed), pool size %d\n",
		result.Added, result.Requested, result.Failed, result.PoolSize)
}
