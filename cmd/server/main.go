// Command server exposes a gambit agent over the AG-UI protocol using
// Server-Sent Events, for frontends such as CopilotKit.
//
// Configuration is via environment variables (a .env file is loaded):
//
//	GAMBIT_PORT         - Server port (default: 8000)
//	GAMBIT_PROVIDER     - anthropic, openai, google, or vertex (required)
//	GAMBIT_MODEL        - Model override (optional)
//	GAMBIT_MODE         - code or tool_calling (default: code)
//	GAMBIT_MAX_STEPS    - Max action steps per run (default: 10)
//	GAMBIT_MAX_DURATION - Wall-clock limit per run (default: 2m)
//	GAMBIT_MAX_TOKENS   - Token limit per run (default: unlimited)
//	GAMBIT_AGENT_FILE   - YAML agent file (optional)
//	GAMBIT_DEMO_TOOLS   - Register demo tools (default: true)
//	GAMBIT_DATA_DIR     - Directory for saved run memories (default: in memory)
//
// Endpoints:
//
//	POST /api/agent      - run the agent, streaming AG-UI events
//	GET  /api/runs       - list saved runs
//	GET  /api/runs/{id}  - saved memory of one run
//	GET  /health
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spetersoncode/gambit/internal/config"
	"github.com/spetersoncode/gambit/internal/demo"
	"github.com/spetersoncode/gambit/store"
	"github.com/spetersoncode/gambit/tool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	provider, err := config.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}

	base := tool.NewRegistry()
	if cfg.DemoTools {
		base = demo.Registry()
	}

	spec := &config.AgentSpec{Name: "agent"}
	if cfg.AgentFile != "" {
		if spec, err = config.LoadAgentFile(cfg.AgentFile); err != nil {
			return err
		}
	}
	built, err := spec.Build(ctx, provider, base, logger, cfg.AgentOptions()...)
	if err != nil {
		return err
	}
	defer built.Close()

	var adapter store.Adapter = store.NewMemoryAdapter()
	if cfg.DataDir != "" {
		if adapter, err = store.NewFileAdapter(cfg.DataDir); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newMux(NewAgentHandler(built.Agent, adapter, logger)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("AG-UI server starting",
		"port", cfg.Port,
		"provider", cfg.Provider,
		"mode", cfg.Mode,
		"tools", built.Agent.Tools().Names(),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
