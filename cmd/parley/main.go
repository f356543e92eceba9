package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calebhart/parley/pkg/agent"
	"github.com/calebhart/parley/pkg/config"
	"github.com/calebhart/parley/pkg/console"
	"github.com/calebhart/parley/pkg/model"
	"github.com/calebhart/parley/pkg/model/gemini"
	"github.com/calebhart/parley/pkg/model/openai"
	"github.com/calebhart/parley/pkg/server"
	"github.com/calebhart/parley/pkg/store/sqlite"
	"github.com/calebhart/parley/pkg/terminal"
	"github.com/calebhart/parley/pkg/terminal/docker"
	"github.com/calebhart/parley/pkg/tools"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger.
	level := parseLevel(cfg.Logging.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize store.
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	conversations, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer conversations.Close()

	// Initialize model provider.
	provider, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		slog.Error("Failed to initialize model provider", "error", err)
		os.Exit(1)
	}

	// Initialize terminal backend.
	executor, err := docker.New(cfg.Terminal.Image, cfg.Terminal.Workdir)
	if err != nil {
		slog.Error("Failed to initialize terminal backend", "error", err)
		os.Exit(1)
	}
	defer executor.Close()
	if err := executor.Prune(ctx); err != nil {
		slog.Warn("Failed to prune stale terminal containers", "error", err)
	}

	// Wire tools.
	bridge := console.NewBridge(cfg.Console.LogBuffer)
	router := tools.NewRouter()
	router.Register(terminal.NewDispatcher(executor), tools.TerminalNames()...)
	router.Register(bridge, tools.ConsoleNames()...)
	registry := tools.NewRegistry(tools.Builtin()...)

	manager := agent.NewManager(provider, registry, router, conversations, agent.Config{
		Model:        cfg.Provider.Model,
		System:       cfg.Agent.System,
		MaxSteps:     cfg.Agent.MaxSteps,
		ModelTimeout: cfg.Agent.ModelTimeout,
		ToolTimeout:  cfg.Agent.ToolTimeout,
	})

	srv := server.New(manager, conversations, bridge)

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
		if err := executor.Prune(shutdownCtx); err != nil {
			slog.Warn("Failed to prune terminal containers", "error", err)
		}
	}()

	if err := srv.Start(cfg.Server.Addr); err != nil {
		slog.Error("Server stopped", "error", err)
	}
}

// loadConfig reads the config file when given, otherwise starts from
// defaults plus environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Provider.Name = "openai"
		cfg.Provider.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Provider.Name = "gemini"
		cfg.Provider.Model = "gemini-2.0-flash"
		cfg.Provider.APIKey = key
	} else {
		return nil, fmt.Errorf("no config file and neither OPENAI_API_KEY nor GEMINI_API_KEY is set")
	}
	return cfg, nil
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (model.Provider, error) {
	switch cfg.Name {
	case "openai":
		if cfg.BaseURL != "" {
			return openai.NewWithBaseURL(cfg.APIKey, cfg.BaseURL), nil
		}
		return openai.New(cfg.APIKey), nil
	case "gemini":
		return gemini.New(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
