package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xhad/qafilter/internal/console"
	cfgPkg "github.com/xhad/qafilter/pkg/config"
	"github.com/xhad/qafilter/pkg/pool"
	"github.com/xhad/qafilter/server"
)

type Config struct {
	ConfigPath  string
	DBUrl       string
	OllamaURL   string
	Port        string
	MaxGenerate int
	Verbose     bool
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
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (file pool when empty)")
	flag.StringVar(&config.OllamaURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.Port, "port", "", "Port to listen on (default 8080, or $PORT)")
	flag.IntVar(&config.MaxGenerate, "max-generate", 5, "Most questions one websocket request may generate")
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
	if config.DBUrl != "" {
		cfg.Database.URL = config.DBUrl
	}
	if config.OllamaURL != "" {
		cfg.LLM.BaseURL = config.OllamaURL
	}
	if config.Port != "" {
		cfg.Server.Port = config.Port
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

	srv := server.New(server.Config{MaxGenerate: config.MaxGenerate, Logger: logger}, s, builder)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
