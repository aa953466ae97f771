package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
	"github.com/spetersoncode/gambit/internal/retry"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/sandbox"
	"github.com/spetersoncode/gambit/tool"
)

// Agent drives a bounded reason-and-act loop over a model and a set of tools.
// An Agent holds no per-run state and may run concurrently.
type Agent struct {
	provider ai.ChatProvider
	tools    *tool.Registry
	defaults []Option
}

// New creates an Agent. The registry's tools are copied and final_answer is
// added when missing. Options given here apply to every run; options passed
// to Run take precedence.
func New(provider ai.ChatProvider, registry *tool.Registry, opts ...Option) *Agent {
	tools := tool.NewRegistry()
	if registry != nil {
		// a fresh registry cannot hold duplicates
		_ = tools.Include(registry)
	}
	if !tools.Has(tool.FinalAnswerName) {
		tools.Add(tool.FinalAnswer())
	}
	return &Agent{
		provider: provider,
		tools:    tools,
		defaults: opts,
	}
}

// Tools returns the agent's tool registry, including final_answer.
func (a *Agent) Tools() *tool.Registry {
	return a.tools
}

// Run executes the agent loop for task and returns the terminal outcome.
// It blocks until the run ends. The returned error is non-nil when the run
// could not start or ended with OutcomeFailed; running out of budget is not
// an error.
func (a *Agent) Run(ctx context.Context, task string, opts ...Option) (*Result, error) {
	r, err := a.newRun(ctx, nil, opts)
	if err != nil {
		return nil, err
	}
	res := r.execute(ctx, task)
	if res.Outcome == OutcomeFailed {
		return res, res.Error
	}
	return res, nil
}

// RunStream executes the agent loop and returns a channel of events.
// The channel is closed after the terminal RunEnd or RunError event.
// Callers must drain the channel.
func (a *Agent) RunStream(ctx context.Context, task string, opts ...Option) <-chan event.Event {
	ch := event.NewChannel()

	go func() {
		defer close(ch)
		r, err := a.newRun(ctx, ch, opts)
		if err != nil {
			event.Emit(ctx, ch, event.Event{
				Type:    event.RunError,
				Message: string(OutcomeFailed),
				Error:   ai.NewExecutionError(ai.KindValidation, err.Error(), err),
			})
			return
		}
		r.execute(ctx, task)
	}()

	return ch
}

func (a *Agent) newRun(ctx context.Context, ch chan<- event.Event, opts []Option) (*run, error) {
	all := append(append([]Option(nil), a.defaults...), opts...)
	o := ApplyOptions(all...)

	if !o.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, o.Mode)
	}
	prompt, err := systemPrompt(a.tools, o)
	if err != nil {
		return nil, err
	}

	mem := o.Memory
	if mem == nil {
		mem = memory.New()
	}
	if _, ok := mem.Final(); ok {
		return nil, ErrMemoryFinished
	}
	if err := mem.BeginRun(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	fwd, tag := event.ForwardFromContext(ctx)
	if fwd != nil && tag == "" {
		tag = o.Name
	}
	logger := o.Logger.With("run_id", runID, "agent", o.Name)

	r := &run{
		agent:    a,
		opts:     o,
		mem:      mem,
		prompt:   prompt,
		logger:   logger,
		em:       &emitter{ch: ch, fwd: fwd, runID: runID, agent: tag},
		resolver: resolve.New(o.Mode, a.tools, resolve.WithPlainTextFinalAnswer(o.PlainTextFinalAnswer), resolve.WithLogger(logger)),
		planOpts: append([]ai.Option(nil), o.ChatOptions...),
	}

	switch o.Mode {
	case resolve.ModeCode:
		sbOpts := []sandbox.Option{
			sandbox.WithAllowedImports(o.AllowedImports...),
			sandbox.WithTimeout(o.ExecutionTimeout),
			sandbox.WithTools(sandbox.FromRegistry(a.tools)...),
			sandbox.WithLogger(logger),
		}
		if o.MaxExecutionSteps > 0 {
			sbOpts = append(sbOpts, sandbox.WithMaxExecutionSteps(o.MaxExecutionSteps))
		}
		r.sandbox = sandbox.New(sbOpts...)
		r.chatOpts = append([]ai.Option{ai.WithStopSequences("Observation:")}, o.ChatOptions...)
	default:
		r.chatOpts = append([]ai.Option{ai.WithTools(a.tools.Describe())}, o.ChatOptions...)
	}
	return r, nil
}

// run is the state of one agent run. Steps execute sequentially.
type run struct {
	agent    *Agent
	opts     *Options
	mem      *memory.Memory
	prompt   string
	logger   *slog.Logger
	em       *emitter
	resolver *resolve.Resolver
	sandbox  *sandbox.Sandbox
	chatOpts []ai.Option
	planOpts []ai.Option

	start time.Time
	usage ai.Usage
	steps int
}

// execute drives the loop to a terminal outcome.
func (r *run) execute(ctx context.Context, task string) *Result {
	defer r.mem.EndRun()
	r.start = time.Now()

	runCtx := ctx
	if d := r.opts.Budget.MaxDuration; d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r.logger.Info("run started", "mode", r.opts.Mode, "max_steps", r.opts.Budget.MaxSteps)
	r.em.emit(ctx, event.Event{Type: event.RunStart})

	if r.mem.Len() == 0 {
		if _, err := r.mem.Append(memory.SystemPromptStep{Prompt: r.prompt}); err != nil {
			return r.fail(ctx, internalError("record system prompt", err))
		}
	}
	if _, err := r.mem.Append(memory.TaskStep{Task: task}); err != nil {
		return r.fail(ctx, internalError("record task", err))
	}

	for n := 1; ; n++ {
		if err := runCtx.Err(); err != nil {
			return r.stop(ctx, runCtx, err)
		}

		if r.planningDue(n) {
			if err := r.plan(runCtx, n); err != nil {
				return r.stop(ctx, runCtx, err)
			}
		}

		answer, final, err := r.step(runCtx, n)
		if err != nil {
			return r.stop(ctx, runCtx, err)
		}
		r.steps++

		if final {
			return r.finish(ctx, OutcomeFinished, answer, nil)
		}
		if ee := r.exhausted(); ee != nil {
			return r.finish(ctx, OutcomeBudgetExhausted, nil, ee)
		}
	}
}

func (r *run) planningDue(n int) bool {
	i := r.opts.PlanningInterval
	return i > 0 && (n-1)%i == 0
}

// exhausted checks the budget after an action step.
func (r *run) exhausted() *ai.ExecutionError {
	b := r.opts.Budget
	var msg string
	switch {
	case b.MaxSteps > 0 && r.steps >= b.MaxSteps:
		msg = fmt.Sprintf("reached the maximum of %d steps without a final answer", b.MaxSteps)
	case b.MaxTokens > 0 && r.usage.Total() >= b.MaxTokens:
		msg = fmt.Sprintf("used %d tokens of a %d token budget", r.usage.Total(), b.MaxTokens)
	case b.MaxDuration > 0 && time.Since(r.start) >= b.MaxDuration:
		msg = fmt.Sprintf("exceeded the maximum duration of %s", b.MaxDuration)
	default:
		return nil
	}
	return ai.NewExecutionError(ai.KindBudgetExhausted, msg, nil)
}

// stop ends the run after a fatal error or an interrupted context.
// Cancellation by the caller wins over the run's own deadline.
func (r *run) stop(ctx, runCtx context.Context, err error) *Result {
	if ctx.Err() != nil {
		return r.fail(ctx, ai.NewExecutionError(ai.KindCancelled, "run cancelled", ctx.Err()))
	}
	if runCtx.Err() != nil {
		ee := ai.NewExecutionError(ai.KindBudgetExhausted,
			fmt.Sprintf("exceeded the maximum duration of %s", r.opts.Budget.MaxDuration), runCtx.Err())
		return r.finish(ctx, OutcomeBudgetExhausted, nil, ee)
	}

	var ee *ai.ExecutionError
	if errors.As(err, &ee) {
		return r.fail(ctx, ee)
	}
	failure := retry.Classify(err)
	return r.fail(ctx, ai.NewExecutionError(ai.KindModel,
		fmt.Sprintf("model call failed (%s): %v", failure, err), err))
}

func (r *run) fail(ctx context.Context, ee *ai.ExecutionError) *Result {
	return r.finish(ctx, OutcomeFailed, nil, ee)
}

func (r *run) finish(ctx context.Context, outcome Outcome, answer json.RawMessage, ee *ai.ExecutionError) *Result {
	res := &Result{
		RunID:    r.em.runID,
		Outcome:  outcome,
		Answer:   answer,
		Error:    ee,
		Steps:    r.steps,
		Usage:    r.usage,
		Duration: time.Since(r.start),
		Memory:   r.mem,
	}

	attrs := []any{
		"outcome", outcome,
		"steps", res.Steps,
		"tokens", res.Usage.Total(),
		"duration", res.Duration,
	}
	if ee != nil {
		attrs = append(attrs, "kind", ee.Kind, "error", ee.Message)
	}
	r.logger.Info("run finished", attrs...)

	ev := event.Event{
		Type:    event.RunEnd,
		Step:    r.steps,
		Message: string(outcome),
		Error:   ee,
		Usage:   r.usage,
	}
	if outcome == OutcomeFinished {
		ev.Answer = res.Text()
	}
	if outcome == OutcomeFailed {
		ev.Type = event.RunError
	}
	r.em.emit(ctx, ev)
	return res
}

func internalError(op string, err error) *ai.ExecutionError {
	return ai.NewExecutionError(ai.KindRuntime, op+": "+err.Error(), err)
}

// emitter stamps events with the run identity and delivers them to the
// stream channel and, for nested runs, the parent's channel.
type emitter struct {
	ch    chan<- event.Event
	fwd   chan<- event.Event
	runID string
	agent string
}

func (e *emitter) emit(ctx context.Context, ev event.Event) {
	ev.RunID = e.runID
	ev.Agent = e.agent
	event.Emit(ctx, e.ch, ev)
	event.Emit(ctx, e.fwd, ev)
}

// forward attaches this run's event sink to ctx so nested runs started by
// tools can forward their events.
func (e *emitter) forward(ctx context.Context) context.Context {
	sink := e.ch
	if sink == nil {
		sink = e.fwd
	}
	if sink == nil {
		return ctx
	}
	return event.WithForward(ctx, sink, e.agent)
}
