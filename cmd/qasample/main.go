package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/qafilter/internal/console"
	cfgPkg "github.com/xhad/qafilter/pkg/config"
	"github.com/xhad/qafilter/pkg/loader"
	"github.com/xhad/qafilter/pkg/pipeline"
)

type Config struct {
	ConfigPath string
	File       string
	Split      string
	MaxRows    int
	MinWords   int
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
	flag.StringVar(&config.File, "file", "", "Read rows from a local JSONL/JSON file instead of the Hub")
	flag.StringVar(&config.Split, "split", "", "Dataset split (default train)")
	flag.IntVar(&config.MaxRows, "max-rows", 0, "Stop after this many rows (0 loads the whole split)")
	flag.IntVar(&config.MinWords, "min-words", 0, "Minimum words in the answer (default 40)")
	flag.Parse()

	return config
}

func loadConfig(config Config) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(config.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over the config file
	if config.File != "" {
		cfg.Dataset.File = config.File
	}
	if config.Split != "" {
		cfg.Dataset.Split = config.Split
	}
	if config.MaxRows > 0 {
		cfg.Dataset.MaxRows = config.MaxRows
	}
	if config.MinWords > 0 {
		cfg.Filter.MinWordCount = config.MinWords
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := console.ProgressBar(-1, "📥 Loading rows...")
	ld, err := loader.FromConfig(cfg.Dataset, func(loaded, total int) {
		if bar.GetMax() != total {
			bar.ChangeMax(total)
		}
		bar.Set(loaded)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize loader: %v", err)
	}

	color.Blue("\nSampling %s (%s)\n", cfg.Dataset.Name, cfg.Dataset.Split)

	pc := pipeline.Config{
		AnswerField:   cfg.Filter.AnswerField,
		QuestionField: cfg.Filter.QuestionField,
		MinWordCount:  cfg.Filter.MinWordCount,
	}
	p := pipeline.New(pc, ld, os.Stdout).WithHooks(stageHooks(bar))

	if err := p.Run(ctx, pipeline.NewSampleSink(pc, os.Stdout)); err != nil {
		bar.Exit()
		fmt.Fprintln(os.Stderr)
		return err
	}
	return nil
}

// stageHooks closes the load bar as soon as rows are in memory and shows a
// counted bar while the filter runs, so both are gone before output starts.
func stageHooks(load *progressbar.ProgressBar) pipeline.Hooks {
	var (
		total  int
		filter *progressbar.ProgressBar
	)
	return pipeline.Hooks{
		Loaded: func(n int) {
			load.Finish()
			fmt.Fprintln(os.Stderr)
			total = n
		},
		Checked: func() {
			// Started on first use so the loaded count prints above it.
			if filter == nil {
				filter = console.ProgressBar(total, "🔍 Filtering rows...")
			}
			filter.Add(1)
		},
		Filtered: func(int) {
			if filter != nil {
				filter.Finish()
				fmt.Fprintln(os.Stderr)
			}
		},
	}
}
