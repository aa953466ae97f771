package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/tool"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// modules are the importable modules. The allow-list selects among them.
var modules = map[string]*starlarkstruct.Module{
	"math": starlarkmath.Module,
	"json": starlarkjson.Module,
	"time": starlarktime.Module,
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

const sourceName = "<code>"

// Sandbox runs code actions in a restricted Starlark interpreter.
// Globals assigned by successful executions persist into later ones.
// Executions are serialized.
type Sandbox struct {
	opts    *Options
	allowed map[string]bool

	mu    sync.Mutex
	state starlark.StringDict
}

// New creates a Sandbox.
func New(opts ...Option) *Sandbox {
	o := ApplyOptions(opts...)
	allowed := make(map[string]bool, len(o.AllowedImports))
	for _, m := range o.AllowedImports {
		allowed[m] = true
	}
	return &Sandbox{opts: o, allowed: allowed, state: starlark.StringDict{}}
}

// Variables returns the names of the persisted globals, sorted.
func (s *Sandbox) Variables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.state))
	for k := range s.state {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset drops all persisted globals.
func (s *Sandbox) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = starlark.StringDict{}
}

// Execute runs source and reports its value, printed output and any failure.
// A failed execution leaves the persisted globals untouched.
func (s *Sandbox) Execute(ctx context.Context, source string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res := s.execute(ctx, source)
	res.Duration = time.Since(start)

	if res.Err != nil {
		s.opts.Logger.Debug("code execution failed",
			"kind", res.Err.Kind,
			"error", res.Err.Message,
			"duration", res.Duration,
		)
	}
	return res
}

func (s *Sandbox) execute(ctx context.Context, source string) Result {
	if err := ctx.Err(); err != nil {
		return failed(ai.KindCancelled, "execution cancelled", err)
	}

	rewritten, bindings, v := scanImports(source, s.allowed)
	if v != nil {
		return failed(ai.KindSecurity, v.msg, nil)
	}

	f, err := fileOptions.Parse(sourceName, rewritten, 0)
	if err != nil {
		return failed(ai.KindParse, err.Error(), err)
	}
	if v := checkSyntax(f, s.allowed); v != nil {
		return failed(ai.KindSecurity, v.msg, nil)
	}

	globals := make(starlark.StringDict, len(s.state)+len(s.opts.Tools)+len(bindings)+1)
	for k, val := range s.state {
		globals[k] = copyValue(val)
	}
	for _, b := range bindings {
		if err := bind(globals, b); err != nil {
			return failed(ai.KindRuntime, err.Error(), err)
		}
	}

	execCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	run := &execution{ctx: execCtx}
	reserved := map[string]bool{tool.FinalAnswerName: true}
	for _, t := range s.opts.Tools {
		globals[t.Name] = run.toolBuiltin(t)
		reserved[t.Name] = true
	}
	globals[tool.FinalAnswerName] = run.finalAnswerBuiltin()

	out := &output{max: s.opts.MaxOutput}
	thread := &starlark.Thread{
		Name:  "sandbox",
		Print: func(_ *starlark.Thread, msg string) { out.line(msg) },
		Load:  s.load,
	}
	if s.opts.MaxExecutionSteps > 0 {
		thread.SetMaxExecutionSteps(s.opts.MaxExecutionSteps)
	}
	stop := context.AfterFunc(execCtx, func() {
		thread.Cancel(execCtx.Err().Error())
	})
	defer stop()

	value, err := run.eval(f, thread, globals)

	res := Result{Output: out.String(), ToolCalls: run.calls}
	if run.final && errors.Is(err, errFinalAnswer) {
		answer, convErr := answerJSON(run.finalValue)
		if convErr != nil {
			res.Err = ai.NewExecutionError(ai.KindRuntime, "final_answer: "+convErr.Error(), convErr)
			return res
		}
		s.commit(globals, reserved)
		res.FinalAnswer = true
		res.Answer = answer
		res.Value, _ = toGo(run.finalValue)
		res.ValueText = text(run.finalValue)
		return res
	}
	if err != nil {
		res.Err = s.classify(ctx, execCtx, thread, err)
		return res
	}

	s.commit(globals, reserved)
	if value != nil && value != starlark.None {
		res.Value, _ = toGo(value)
		res.ValueText = text(value)
	}
	return res
}

func (s *Sandbox) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Sandbox) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	if !s.allowed[module] {
		return nil, fmt.Errorf("%s", importDenied(module, s.allowed))
	}
	m, ok := modules[module]
	if !ok {
		return nil, fmt.Errorf("module %s is not available", module)
	}
	return m.Members, nil
}

// commit persists globals, minus the builtins injected for this execution.
// Persisted values are frozen. Later executions work on copies of the
// containers, so a function defined earlier that mutates a global it closed
// over fails instead of changing the persisted state.
func (s *Sandbox) commit(globals starlark.StringDict, reserved map[string]bool) {
	next := make(starlark.StringDict, len(globals))
	for k, v := range globals {
		if reserved[k] {
			continue
		}
		v.Freeze()
		next[k] = v
	}
	s.state = next
}

func (s *Sandbox) classify(parent, execCtx context.Context, thread *starlark.Thread, err error) *ai.ExecutionError {
	if parent.Err() != nil {
		return ai.NewExecutionError(ai.KindCancelled, "execution cancelled", parent.Err())
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return ai.NewExecutionError(ai.KindTimeout,
			fmt.Sprintf("execution exceeded the time limit of %s", s.opts.Timeout), err)
	}

	var tce *toolCallError
	if errors.As(err, &tce) {
		return ai.NewExecutionError(ai.KindTool, tce.Error(), tce.err)
	}

	if limit := s.opts.MaxExecutionSteps; limit > 0 && thread.ExecutionSteps() >= limit {
		return ai.NewExecutionError(ai.KindTimeout,
			fmt.Sprintf("execution exceeded the limit of %d steps", limit), err)
	}

	var se syntax.Error
	if errors.As(err, &se) {
		return ai.NewExecutionError(ai.KindParse, se.Error(), err)
	}

	var el resolve.ErrorList
	if errors.As(err, &el) {
		for _, e := range el {
			if strings.Contains(e.Msg, "undefined") {
				return ai.NewExecutionError(ai.KindRuntime, el.Error(), err)
			}
		}
		return ai.NewExecutionError(ai.KindParse, el.Error(), err)
	}

	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return ai.NewExecutionError(ai.KindRuntime, ee.Backtrace(), err)
	}
	return ai.NewExecutionError(ai.KindRuntime, err.Error(), err)
}

// eval runs every statement and evaluates a trailing expression statement
// for its value.
func (x *execution) eval(f *syntax.File, thread *starlark.Thread, globals starlark.StringDict) (starlark.Value, error) {
	stmts := f.Stmts
	var last *syntax.ExprStmt
	if n := len(stmts); n > 0 {
		if es, ok := stmts[n-1].(*syntax.ExprStmt); ok {
			last = es
			stmts = stmts[:n-1]
		}
	}

	if len(stmts) > 0 {
		chunk := &syntax.File{Path: f.Path, Stmts: stmts, Options: f.Options}
		if err := starlark.ExecREPLChunk(chunk, thread, globals); err != nil {
			return nil, err
		}
	}
	if last == nil {
		return starlark.None, nil
	}
	return starlark.EvalExprOptions(f.Options, thread, last.X, globals)
}

func bind(globals starlark.StringDict, b binding) error {
	m, ok := modules[b.module]
	if !ok {
		return fmt.Errorf("module %s is not available", b.module)
	}
	switch b.member {
	case "":
		globals[b.name] = m
	case "*":
		for k, v := range m.Members {
			globals[k] = v
		}
	default:
		v, ok := m.Members[b.member]
		if !ok {
			return fmt.Errorf("cannot import name %s from %s", b.member, b.module)
		}
		globals[b.name] = v
	}
	return nil
}

func failed(kind ai.ErrorKind, msg string, cause error) Result {
	return Result{Err: ai.NewExecutionError(kind, msg, cause)}
}

// output collects printed lines up to a byte limit.
type output struct {
	max       int
	b         strings.Builder
	truncated bool
}

func (o *output) line(msg string) {
	if o.truncated {
		return
	}
	msg += "\n"
	if o.max > 0 && o.b.Len()+len(msg) > o.max {
		o.b.WriteString(msg[:o.max-o.b.Len()])
		o.truncated = true
		return
	}
	o.b.WriteString(msg)
}

func (o *output) String() string {
	if o.truncated {
		return o.b.String() + "\n...(output truncated)"
	}
	return o.b.String()
}
