// Command gambit runs an agent on a task from the command line.
//
// The task is taken from the arguments; without arguments gambit reads tasks
// from standard input, one per line. Configuration comes from the same
// environment variables as cmd/server, and flags override them.
//
// Usage:
//
//	GAMBIT_PROVIDER=anthropic go run ./cmd/gambit "What is 17 * 23?"
//	go run ./cmd/gambit -agent agents/manager.yaml -mode tool_calling
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spetersoncode/gambit/agent"
	"github.com/spetersoncode/gambit/internal/config"
	"github.com/spetersoncode/gambit/internal/demo"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/store"
	"github.com/spetersoncode/gambit/tool"
)

func main() {
	agentFile := flag.String("agent", "", "YAML agent file (overrides GAMBIT_AGENT_FILE)")
	mode := flag.String("mode", "", "action mode: code or tool_calling")
	maxSteps := flag.Int("max-steps", 0, "max action steps (overrides GAMBIT_MAX_STEPS)")
	quiet := flag.Bool("quiet", false, "print only the final answer")
	save := flag.String("save", "", "directory to save run memories in")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	if *agentFile != "" {
		cfg.AgentFile = *agentFile
	}
	if *save != "" {
		cfg.DataDir = *save
	}

	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var overrides []agent.Option
	if *mode != "" {
		if !resolve.Mode(*mode).Valid() {
			fmt.Fprintf(os.Stderr, "unknown mode: %s\n", *mode)
			os.Exit(2)
		}
		overrides = append(overrides, agent.WithMode(resolve.Mode(*mode)))
	}
	if *maxSteps > 0 {
		overrides = append(overrides, agent.WithMaxSteps(*maxSteps))
	}

	if err := run(ctx, cfg, logger, flag.Args(), *quiet, overrides); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, quiet bool, overrides []agent.Option) error {
	provider, err := config.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}

	base := tool.NewRegistry()
	if cfg.DemoTools {
		base = demo.Registry()
	}
	spec := &config.AgentSpec{Name: "gambit"}
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

	var adapter store.Adapter
	if cfg.DataDir != "" {
		if adapter, err = store.NewFileAdapter(cfg.DataDir); err != nil {
			return err
		}
	}

	r := &runner{agent: built.Agent, store: adapter, out: os.Stdout, quiet: quiet, opts: overrides}
	if len(args) > 0 {
		return r.task(ctx, strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := r.task(ctx, line); err != nil {
			logger.Error("task failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runner streams one task at a time and renders its events.
type runner struct {
	agent *agent.Agent
	store store.Adapter
	out   io.Writer
	quiet bool
	opts  []agent.Option
}

func (r *runner) task(ctx context.Context, task string) error {
	mem := memory.New()
	opts := append([]agent.Option{agent.WithMemory(mem)}, r.opts...)

	p := &printer{w: r.out, quiet: r.quiet}
	var runID string
	for ev := range r.agent.RunStream(ctx, task, opts...) {
		if runID == "" && ev.Agent == "" {
			runID = ev.RunID
		}
		p.print(ev)
	}

	if r.store != nil && runID != "" {
		if err := memory.Save(context.WithoutCancel(ctx), r.store, runID, mem); err != nil {
			return fmt.Errorf("save memory: %w", err)
		}
	}
	return p.err
}
