// sandboxrunner orchestrates LLM-generated analysis programs: it exposes
// the HTTP/WebSocket API, runs generated Python in a sandboxed Docker
// container, and keeps an in-process session store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
	"github.com/sandboxrunner/sandboxrunner/pkg/api"
	"github.com/sandboxrunner/sandboxrunner/pkg/config"
	"github.com/sandboxrunner/sandboxrunner/pkg/llmclient"
	"github.com/sandboxrunner/sandboxrunner/pkg/sandbox"
	"github.com/sandboxrunner/sandboxrunner/pkg/session"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	workspaceDir := flag.String("workspace-dir",
		getEnv("WORKSPACE_DIR", "./workspaces"),
		"Path under which per-execution sandbox workspaces are created")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment variables", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	reaperInterval, err := time.ParseDuration(cfg.Sandbox.ReaperInterval)
	if err != nil {
		slog.Warn("invalid reaper_interval, falling back to 5m", "configured", cfg.Sandbox.ReaperInterval, "error", err)
		reaperInterval = 5 * time.Minute
	}

	driver, err := sandbox.New(sandbox.Config{
		DockerHost:      cfg.Sandbox.DockerHost,
		BuildImage:      cfg.Sandbox.BuildOnInit,
		BuildContextDir: cfg.Sandbox.BuildContextDir,
		Limits: sandbox.Limits{
			MemoryBytes: cfg.Sandbox.MemoryBytes,
			NanoCPUs:    cfg.Sandbox.NanoCPUs,
			PidsLimit:   sandbox.DefaultLimits().PidsLimit,
			TmpfsSize:   sandbox.DefaultLimits().TmpfsSize,
		},
	})
	if err != nil {
		slog.Error("failed to initialize sandbox driver", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			slog.Warn("error closing sandbox driver", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := driver.EnsureImage(ctx); err != nil {
		slog.Error("failed to ensure analysis image", "error", err)
		os.Exit(1)
	}

	reaper := sandbox.NewReaper(driver, reaperInterval)
	reaper.Start(ctx)
	defer reaper.Stop()

	llm, err := llmclient.New(llmclient.Config{
		APIKey:  cfg.APIKey(),
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutS) * time.Second,
	})
	if err != nil {
		slog.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	if llm == nil {
		slog.Warn("no LLM API key configured; generation and summarization will use fallback behavior")
	}

	orchestrator := analysis.NewOrchestrator(llm, driver, *workspaceDir)
	orchestrator.ExecutionTimeout = cfg.Timeout()
	sessions := session.NewManager()
	server := api.NewServer(sessions, orchestrator, cfg.Transport.AllowedWSOrigins)

	addr := cfg.Transport.Host + ":" + strconv.Itoa(cfg.Transport.Port)
	slog.Info("starting sandboxrunner",
		"addr", addr, "config_dir", *configDir, "workspace_dir", *workspaceDir)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error during server shutdown", "error", err)
	}
}
