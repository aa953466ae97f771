package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/sandbox"
	"github.com/spetersoncode/gambit/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements ai.ChatProvider with a scripted list of responses.
type mockProvider struct {
	mu        sync.Mutex
	responses []mockResponse
	callCount int
	calls     [][]ai.Message
	options   []*ai.Options
}

type mockResponse struct {
	content   string
	toolCalls []ai.ToolCall
	err       error
}

func (m *mockProvider) next(messages []ai.Message, opts []ai.Option) mockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]ai.Message(nil), messages...))
	m.options = append(m.options, ai.ApplyOptions(opts...))

	if m.callCount >= len(m.responses) {
		return mockResponse{content: "No more responses"}
	}
	resp := m.responses[m.callCount]
	m.callCount++
	return resp
}

func (m *mockProvider) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	resp := m.next(messages, opts)
	if resp.err != nil {
		return nil, resp.err
	}
	return &ai.Response{
		Content:   resp.content,
		ToolCalls: resp.toolCalls,
		Usage:     ai.Usage{InputTokens: 10, OutputTokens: 20},
	}, nil
}

func (m *mockProvider) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	resp := m.next(messages, opts)
	ch := make(chan ai.StreamEvent)

	if resp.err != nil {
		go func() {
			defer close(ch)
			ch <- ai.StreamEvent{Err: resp.err}
		}()
		return ch, nil
	}

	go func() {
		defer close(ch)
		// Simulate streaming by sending content character by character
		for _, c := range resp.content {
			select {
			case <-ctx.Done():
				ch <- ai.StreamEvent{Err: ctx.Err()}
				return
			case ch <- ai.StreamEvent{Delta: string(c)}:
			}
		}
		ch <- ai.StreamEvent{
			Done: true,
			Response: &ai.Response{
				Content:   resp.content,
				ToolCalls: resp.toolCalls,
				Usage:     ai.Usage{InputTokens: 10, OutputTokens: 20},
			},
		}
	}()

	return ch, nil
}

func (m *mockProvider) callsMade() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func code(src string) mockResponse {
	return mockResponse{content: "Thought: let me compute this.\n```py\n" + src + "\n```"}
}

func nativeCall(name, args string) mockResponse {
	return mockResponse{toolCalls: []ai.ToolCall{{ID: ai.GenerateCallID(), Name: name, Arguments: args}}}
}

type addArgs struct {
	A int `json:"a" required:"true"`
	B int `json:"b" required:"true"`
}

func addTool() tool.Registration {
	return tool.Func("add", "Add two numbers", func(ctx context.Context, args addArgs) (string, error) {
		return fmt.Sprint(args.A + args.B), nil
	})
}

func stepTypes(m *memory.Memory) []memory.StepType {
	var types []memory.StepType
	for _, s := range m.Steps() {
		types = append(types, s.Type())
	}
	return types
}

// assertOneTerminal checks that a finished run holds exactly one final
// answer step and any other outcome holds none.
func assertOneTerminal(t *testing.T, res *Result) {
	t.Helper()
	finals := 0
	for _, s := range res.Memory.Steps() {
		if s.Type() == memory.TypeFinalAnswer {
			finals++
		}
	}
	if res.Finished() {
		assert.Equal(t, 1, finals)
		assert.Nil(t, res.Error)
	} else {
		assert.Equal(t, 0, finals)
		require.NotNil(t, res.Error)
	}
}

func collect(ch <-chan event.Event) []event.Event {
	var events []event.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

// --- Options Tests ---

func TestApplyOptions(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		opts := ApplyOptions()

		assert.Equal(t, resolve.ModeToolCalling, opts.Mode)
		assert.Equal(t, 20, opts.Budget.MaxSteps)
		assert.Equal(t, 30*time.Second, opts.ExecutionTimeout)
		assert.Equal(t, 60*time.Second, opts.HandlerTimeout)
		assert.Equal(t, sandbox.DefaultAllowedImports, opts.AllowedImports)
		assert.NotNil(t, opts.Logger)
		assert.Equal(t, 4, opts.retry.MaxAttempts)
	})

	t.Run("applies custom options", func(t *testing.T) {
		opts := ApplyOptions(
			WithMode(resolve.ModeCode),
			WithMaxSteps(5),
			WithMaxTokens(1000),
			WithMaxDuration(time.Minute),
			WithPlanningInterval(3),
			WithAllowedImports("math", "time"),
			WithoutRetry(),
		)

		assert.Equal(t, resolve.ModeCode, opts.Mode)
		assert.Equal(t, Budget{MaxSteps: 5, MaxTokens: 1000, MaxDuration: time.Minute}, opts.Budget)
		assert.Equal(t, 3, opts.PlanningInterval)
		assert.Equal(t, []string{"math", "time"}, opts.AllowedImports)
		assert.Equal(t, 1, opts.retry.MaxAttempts)
	})

	t.Run("per-run options override agent defaults", func(t *testing.T) {
		provider := &mockProvider{responses: []mockResponse{nativeCall("final_answer", `{"answer": "ok"}`)}}
		a := New(provider, nil, WithMaxSteps(1), WithMode(resolve.ModeCode))

		res, err := a.Run(context.Background(), "task", WithMode(resolve.ModeToolCalling))
		require.NoError(t, err)
		assert.True(t, res.Finished())
	})
}

// --- Agent Tests ---

func TestNew(t *testing.T) {
	t.Run("adds final_answer to the registry", func(t *testing.T) {
		a := New(&mockProvider{}, tool.NewRegistry().Add(addTool()))

		assert.Equal(t, []string{"add", tool.FinalAnswerName}, a.Tools().Names())
	})

	t.Run("accepts a nil registry", func(t *testing.T) {
		a := New(&mockProvider{}, nil)

		assert.Equal(t, []string{tool.FinalAnswerName}, a.Tools().Names())
	})
}

func TestRun_CodeArithmetic(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		code("2 + 2"),
		code("final_answer(4)"),
	}}
	a := New(provider, nil, WithMode(resolve.ModeCode))

	res, err := a.Run(context.Background(), "what is 2+2")
	require.NoError(t, err)

	assert.Equal(t, OutcomeFinished, res.Outcome)
	assert.Equal(t, "4", res.Text())
	assert.JSONEq(t, `4`, string(res.Answer))
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, ai.Usage{InputTokens: 20, OutputTokens: 40}, res.Usage)
	assertOneTerminal(t, res)

	steps := res.Memory.ActionSteps()
	require.Len(t, steps, 2)
	assert.Equal(t, "Last output from code snippet:\n4", steps[0].Observation)
	assert.Nil(t, steps[0].Error)
	require.NotNil(t, steps[0].Action)
	assert.Equal(t, memory.ActionCode, steps[0].Action.Kind)
	assert.Equal(t, "2 + 2", steps[0].Action.Code)

	// the observation reaches the model on the next turn
	second := provider.calls[1]
	assert.Contains(t, second[len(second)-1].Content, "Observation:\nLast output from code snippet:\n4")

	// code mode sends a stop sequence and no tool definitions
	assert.Contains(t, provider.options[0].StopSequences, "Observation:")
	assert.Empty(t, provider.options[0].Tools)
}

func TestRun_CodeVariablesPersistAcrossSteps(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		code("x = add(2, 3)"),
		code("final_answer(int(x) * 2)"),
	}}
	a := New(provider, tool.NewRegistry().Add(addTool()), WithMode(resolve.ModeCode))

	res, err := a.Run(context.Background(), "double the sum")
	require.NoError(t, err)
	assert.Equal(t, "10", res.Text())
}

func TestRun_UnknownToolIsRecoverable(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		nativeCall("get_weather", `{"city": "Paris"}`),
		nativeCall("final_answer", `{"answer": "I cannot check the weather"}`),
	}}
	a := New(provider, nil)

	res, err := a.Run(context.Background(), "weather in Paris?")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinished, res.Outcome)
	assert.Equal(t, "I cannot check the weather", res.Text())
	assertOneTerminal(t, res)

	steps := res.Memory.ActionSteps()
	require.Len(t, steps, 2)
	require.NotNil(t, steps[0].Error)
	assert.Equal(t, ai.KindValidation, steps[0].Error.Kind)
	assert.Contains(t, steps[0].Error.Message, "Unknown tool")

	// the error is sent back as the result of the native call
	second := provider.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
	require.Len(t, last.ToolResults, 1)
	assert.True(t, last.ToolResults[0].IsError)
	assert.Contains(t, last.ToolResults[0].Content, "Unknown tool")
}

func TestRun_DisallowedImport(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		code("import os\nos.listdir('.')"),
	}}
	a := New(provider, nil, WithMode(resolve.ModeCode), WithMaxSteps(1))

	res, err := a.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, 1, res.Steps)

	steps := res.Memory.ActionSteps()
	require.Len(t, steps, 1)
	require.NotNil(t, steps[0].Error)
	assert.Equal(t, ai.KindSecurity, steps[0].Error.Kind)
}

func TestRun_BudgetExhaustedAfterMaxSteps(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{content: "Let me think."},
		{content: "Still thinking."},
		{content: "Almost there."},
		{content: "Never reached."},
	}}
	a := New(provider, nil)

	res, err := a.Run(context.Background(), "task", WithMaxSteps(3))
	require.NoError(t, err)

	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, 3, res.Steps)
	assert.Len(t, res.Memory.ActionSteps(), 3)
	assert.Equal(t, 3, provider.callsMade())
	require.NotNil(t, res.Error)
	assert.Equal(t, ai.KindBudgetExhausted, res.Error.Kind)
	assertOneTerminal(t, res)

	for _, s := range res.Memory.ActionSteps() {
		require.NotNil(t, s.Error)
		assert.Equal(t, ai.KindParse, s.Error.Kind)
		assert.Equal(t, resolve.NoToolCallMessage, s.Error.Message)
	}
}

func TestRun_TextActionFormat(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{content: "I will add them.\nAction:\n{\"name\": \"add\", \"arguments\": {\"a\": 2, \"b\": 3}}"},
		{content: "Action: {\"name\": \"final_answer\", \"arguments\": {\"answer\": 5}}"},
	}}
	a := New(provider, tool.NewRegistry().Add(addTool()))

	res, err := a.Run(context.Background(), "add 2 and 3")
	require.NoError(t, err)
	assert.Equal(t, "5", res.Text())

	steps := res.Memory.ActionSteps()
	require.Len(t, steps, 2)
	assert.Equal(t, "5", steps[0].Observation)
	require.NotNil(t, steps[0].Action)
	assert.Equal(t, "add", steps[0].Action.ToolName)
	assert.JSONEq(t, `{"a": 2, "b": 3}`, string(steps[0].Action.Arguments))
}

func TestRun_ToolFailureIsRecoverable(t *testing.T) {
	registry := tool.NewRegistry().Add(tool.Func("flaky", "Fails", func(ctx context.Context, args addArgs) (string, error) {
		return "", errors.New("backend down")
	}))
	provider := &mockProvider{responses: []mockResponse{
		nativeCall("flaky", `{"a": 1, "b": 2}`),
		nativeCall("final_answer", `{"answer": "gave up"}`),
	}}
	a := New(provider, registry)

	res, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.True(t, res.Finished())

	steps := res.Memory.ActionSteps()
	require.NotNil(t, steps[0].Error)
	assert.Equal(t, ai.KindTool, steps[0].Error.Kind)
	assert.Equal(t, "backend down", steps[0].Error.Message)
}

func TestRun_OnlyFirstToolCallRuns(t *testing.T) {
	var calls int
	registry := tool.NewRegistry().Add(tool.Func("count", "Counts calls", func(ctx context.Context, args addArgs) (string, error) {
		calls++
		return "counted", nil
	}))
	provider := &mockProvider{responses: []mockResponse{
		{toolCalls: []ai.ToolCall{
			{ID: "call_1", Name: "count", Arguments: `{"a": 1, "b": 1}`},
			{ID: "call_2", Name: "count", Arguments: `{"a": 2, "b": 2}`},
		}},
		nativeCall("final_answer", `{"answer": "done"}`),
	}}
	a := New(provider, registry)

	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	second := provider.calls[1]
	last := second[len(second)-1]
	require.Len(t, last.ToolResults, 2)
	assert.Equal(t, "call_1", last.ToolResults[0].ToolCallID)
	assert.Contains(t, last.ToolResults[0].Content, "counted")
	assert.Equal(t, memory.IgnoredCallNotice, last.ToolResults[1].Content)
}

func TestRun_ToolCallsWithoutIDsOrNames(t *testing.T) {
	registry := tool.NewRegistry().Add(tool.Func("count", "Counts calls", func(ctx context.Context, args addArgs) (string, error) {
		return "counted", nil
	}))
	provider := &mockProvider{responses: []mockResponse{
		{toolCalls: []ai.ToolCall{
			{ID: "call_0", Arguments: `{}`},
			{Name: "count", Arguments: `{"a": 1, "b": 1}`},
		}},
		nativeCall("final_answer", `{"answer": "done"}`),
	}}
	a := New(provider, registry)

	res, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	step := res.Memory.ActionSteps()[0]
	require.Len(t, step.ToolCalls, 1)
	require.NotNil(t, step.Action)
	assert.NotEmpty(t, step.ToolCalls[0].ID)
	assert.Equal(t, step.Action.ID, step.ToolCalls[0].ID)

	second := provider.calls[1]
	assistant, results := second[len(second)-2], second[len(second)-1]
	require.Len(t, assistant.ToolCalls, 1)
	require.Len(t, results.ToolResults, 1)
	assert.Equal(t, assistant.ToolCalls[0].ID, results.ToolResults[0].ToolCallID)
	assert.Contains(t, results.ToolResults[0].Content, "counted")
}

func TestRun_ManagedAgentExhausted(t *testing.T) {
	subProvider := &mockProvider{}
	researcher := New(subProvider, nil)

	registry := tool.NewRegistry().Add(NewTool("researcher", researcher, WithToolMaxSteps(1)))
	provider := &mockProvider{responses: []mockResponse{
		nativeCall("researcher", `{"task": "find the capital of France"}`),
		nativeCall("final_answer", `{"answer": "unknown"}`),
	}}
	a := New(provider, registry)

	res, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinished, res.Outcome)

	steps := res.Memory.ActionSteps()
	require.Len(t, steps, 2)
	require.NotNil(t, steps[0].Error)
	assert.Equal(t, ai.KindTool, steps[0].Error.Kind)
	assert.Contains(t, steps[0].Error.Message, "did not finish")

	// the sub-agent received the framed task
	require.Equal(t, 1, subProvider.callsMade())
	assert.Contains(t, subProvider.calls[0][1].Content, "find the capital of France")
	assert.Contains(t, subProvider.calls[0][1].Content, "researcher")
}

func TestRun_ManagedAgentFinished(t *testing.T) {
	subProvider := &mockProvider{responses: []mockResponse{
		nativeCall("final_answer", `{"answer": "Paris"}`),
	}}
	researcher := New(subProvider, nil)

	registry := tool.NewRegistry().Add(NewTool("researcher", researcher))
	provider := &mockProvider{responses: []mockResponse{
		code("capital = researcher(task='capital of France')\nfinal_answer(capital)"),
	}}
	a := New(provider, registry, WithMode(resolve.ModeCode))

	res, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "Paris", res.Text())
}

func TestRun_ModelError(t *testing.T) {
	t.Run("permanent failure ends the run", func(t *testing.T) {
		provider := &mockProvider{responses: []mockResponse{
			{err: ai.NewPermanentError("invalid api key", 401, nil)},
		}}
		a := New(provider, nil)

		res, err := a.Run(context.Background(), "task")
		require.Error(t, err)
		assert.Equal(t, ai.KindModel, ai.KindOf(err))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Error.Message, string(ai.ModelInvalidResponse))
		assert.Equal(t, 1, provider.callsMade())
		assert.Empty(t, res.Memory.ActionSteps())
		assertOneTerminal(t, res)
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		provider := &mockProvider{responses: []mockResponse{
			{err: ai.NewTransientError("overloaded", 503, nil)},
			{err: ai.NewTransientError("overloaded", 503, nil)},
			nativeCall("final_answer", `{"answer": "ok"}`),
		}}
		a := New(provider, nil, WithRetry(3, time.Millisecond))

		res, err := a.Run(context.Background(), "task")
		require.NoError(t, err)
		assert.True(t, res.Finished())
		assert.Equal(t, 3, provider.callsMade())
	})

	t.Run("exhausted retries are classified", func(t *testing.T) {
		provider := &mockProvider{responses: []mockResponse{
			{err: ai.NewTransientError("rate limited", 429, nil)},
			{err: ai.NewTransientError("rate limited", 429, nil)},
			{err: ai.NewTransientError("rate limited", 429, nil)},
		}}
		a := New(provider, nil, WithRetry(3, time.Millisecond))

		res, err := a.Run(context.Background(), "task")
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Error.Message, string(ai.ModelRateLimited))
		assert.Equal(t, 3, provider.callsMade())
	})
}

func TestRun_Cancellation(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := &mockProvider{}
		res, err := New(provider, nil).Run(ctx, "task")
		require.Error(t, err)
		assert.Equal(t, ai.KindCancelled, ai.KindOf(err))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Equal(t, 0, provider.callsMade())
	})

	t.Run("cancelled during a step keeps the recorded step", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		registry := tool.NewRegistry().Add(tool.Func("stop", "Cancels the run", func(_ context.Context, args addArgs) (string, error) {
			cancel()
			return "stopped", nil
		}))
		provider := &mockProvider{responses: []mockResponse{
			nativeCall("stop", `{"a": 1, "b": 2}`),
			nativeCall("final_answer", `{"answer": "never"}`),
		}}

		res, err := New(provider, registry).Run(ctx, "task")
		require.Error(t, err)
		assert.Equal(t, ai.KindCancelled, res.Error.Kind)
		assert.Equal(t, 1, provider.callsMade())

		steps := res.Memory.ActionSteps()
		require.Len(t, steps, 1)
		assert.Equal(t, "stopped", steps[0].Observation)
		assertOneTerminal(t, res)
	})
}

func TestRun_Budgets(t *testing.T) {
	t.Run("token budget", func(t *testing.T) {
		provider := &mockProvider{}
		a := New(provider, nil, WithMaxTokens(50))

		res, err := a.Run(context.Background(), "task")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
		assert.Equal(t, 2, res.Steps)
		assert.Contains(t, res.Error.Message, "tokens")
	})

	t.Run("duration budget", func(t *testing.T) {
		registry := tool.NewRegistry().Add(tool.Func("wait", "Blocks", func(ctx context.Context, args addArgs) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
		provider := &mockProvider{responses: []mockResponse{
			nativeCall("wait", `{"a": 1, "b": 2}`),
		}}
		a := New(provider, registry, WithMaxDuration(50*time.Millisecond))

		res, err := a.Run(context.Background(), "task")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
		assert.Equal(t, 1, res.Steps)
		assert.Equal(t, ai.KindBudgetExhausted, res.Error.Kind)
		assert.Contains(t, res.Error.Message, "duration")
	})
}

func TestRun_Planning(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{content: "1. Add the numbers."},
		nativeCall("add", `{"a": 1, "b": 2}`),
		{content: "1. Report the sum."},
		nativeCall("final_answer", `{"answer": 3}`),
	}}
	a := New(provider, tool.NewRegistry().Add(addTool()), WithPlanningInterval(1))

	res, err := a.Run(context.Background(), "add 1 and 2")
	require.NoError(t, err)
	assert.Equal(t, "3", res.Text())
	assert.Equal(t, 2, res.Steps)

	assert.Equal(t, []memory.StepType{
		memory.TypeSystemPrompt,
		memory.TypeTask,
		memory.TypePlanning,
		memory.TypeAction,
		memory.TypePlanning,
		memory.TypeAction,
		memory.TypeFinalAnswer,
	}, stepTypes(res.Memory))

	// planning calls carry no tools
	assert.Empty(t, provider.options[0].Tools)
	assert.Len(t, provider.options[1].Tools, 2)
	replan := provider.calls[2]
	assert.Equal(t, replanPrompt, replan[len(replan)-1].Content)
	assert.Equal(t, ai.Usage{InputTokens: 40, OutputTokens: 80}, res.Usage)
}

func TestRun_Memory(t *testing.T) {
	t.Run("round trips through JSON", func(t *testing.T) {
		provider := &mockProvider{responses: []mockResponse{
			code("x = 2 + 2\nprint(x)"),
			code("final_answer(x)"),
		}}
		res, err := New(provider, nil, WithMode(resolve.ModeCode)).Run(context.Background(), "task")
		require.NoError(t, err)

		data, err := json.Marshal(res.Memory)
		require.NoError(t, err)
		restored := memory.New()
		require.NoError(t, json.Unmarshal(data, restored))

		assert.Equal(t, res.Memory.Messages(), restored.Messages())
		assert.Equal(t, stepTypes(res.Memory), stepTypes(restored))
	})

	t.Run("indices are strictly increasing", func(t *testing.T) {
		provider := &mockProvider{}
		res, err := New(provider, nil, WithMaxSteps(4)).Run(context.Background(), "task")
		require.NoError(t, err)

		steps := res.Memory.Steps()
		for i := 1; i < len(steps); i++ {
			assert.Less(t, steps[i-1].Meta().Index, steps[i].Meta().Index)
			assert.True(t, steps[i-1].Meta().Timestamp.Before(steps[i].Meta().Timestamp))
		}
	})

	t.Run("continues an existing memory", func(t *testing.T) {
		mem := memory.New()
		provider := &mockProvider{responses: []mockResponse{
			{content: "thinking"},
			nativeCall("final_answer", `{"answer": "done"}`),
		}}
		a := New(provider, nil, WithMemory(mem), WithMaxSteps(1))

		first, err := a.Run(context.Background(), "first")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBudgetExhausted, first.Outcome)

		second, err := a.Run(context.Background(), "second")
		require.NoError(t, err)
		assert.True(t, second.Finished())
		assert.Equal(t, 1, second.Steps)
		assert.Len(t, mem.ActionSteps(), 2)

		_, err = a.Run(context.Background(), "third")
		assert.ErrorIs(t, err, ErrMemoryFinished)
	})
}

func TestRun_InvalidMode(t *testing.T) {
	_, err := New(&mockProvider{}, nil).Run(context.Background(), "task", WithMode("all"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

// --- Streaming Tests ---

func TestRunStream_EventOrder(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		code("2 + 2"),
		code("final_answer(4)"),
	}}
	a := New(provider, nil, WithMode(resolve.ModeCode))

	events := collect(a.RunStream(context.Background(), "what is 2+2"))
	require.NotEmpty(t, events)

	var types []event.Type
	for _, e := range events {
		if e.Type != event.MessageDelta {
			types = append(types, e.Type)
		}
	}
	step := []event.Type{
		event.StepStart,
		event.MessageStart,
		event.MessageEnd,
		event.CodeStart,
		event.CodeResult,
		event.StepEnd,
	}
	expected := append([]event.Type{event.RunStart}, step...)
	expected = append(expected, step...)
	expected = append(expected, event.RunEnd)
	assert.Equal(t, expected, types)

	runID := events[0].RunID
	assert.NotEmpty(t, runID)
	for _, e := range events {
		assert.Equal(t, runID, e.RunID)
		assert.Empty(t, e.Agent)
	}

	last := events[len(events)-1]
	assert.True(t, last.IsTerminal())
	assert.Equal(t, string(OutcomeFinished), last.Message)
	assert.Equal(t, "4", last.Answer)
}

func TestRunStream_DeltasRebuildContent(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{content: "Action: {\"name\": \"final_answer\", \"arguments\": {\"answer\": \"hi\"}}"},
	}}

	var text string
	for e := range New(provider, nil).RunStream(context.Background(), "say hi") {
		if e.Type == event.MessageDelta {
			text += e.Delta
		}
	}
	assert.Equal(t, provider.responses[0].content, text)
}

func TestRunStream_ToolEvents(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		nativeCall("add", `{"a": 1, "b": 2}`),
		nativeCall("final_answer", `{"answer": 3}`),
	}}
	a := New(provider, tool.NewRegistry().Add(addTool()))

	var result *ai.ToolResult
	var toolEvents []event.Type
	for e := range a.RunStream(context.Background(), "task") {
		switch e.Type {
		case event.ToolCallStart, event.ToolCallArgs, event.ToolCallEnd:
			toolEvents = append(toolEvents, e.Type)
		case event.ToolCallResult:
			toolEvents = append(toolEvents, e.Type)
			result = e.ToolResult
		}
	}

	assert.Equal(t, []event.Type{event.ToolCallStart, event.ToolCallArgs, event.ToolCallEnd, event.ToolCallResult}, toolEvents)
	require.NotNil(t, result)
	assert.Equal(t, "3", result.Content)
}

func TestRunStream_ForwardsManagedAgentEvents(t *testing.T) {
	subProvider := &mockProvider{responses: []mockResponse{
		nativeCall("final_answer", `{"answer": "Paris"}`),
	}}
	registry := tool.NewRegistry().Add(NewTool("researcher", New(subProvider, nil)))
	provider := &mockProvider{responses: []mockResponse{
		nativeCall("researcher", `{"task": "capital of France"}`),
		nativeCall("final_answer", `{"answer": "Paris"}`),
	}}

	events := collect(New(provider, registry).RunStream(context.Background(), "task"))

	var nested []event.Event
	terminal := 0
	for _, e := range events {
		if e.Agent == "researcher" {
			nested = append(nested, e)
		}
		if e.IsTerminal() {
			terminal++
		}
	}
	require.NotEmpty(t, nested)
	assert.Equal(t, event.RunStart, nested[0].Type)
	assert.Equal(t, event.RunEnd, nested[len(nested)-1].Type)
	assert.Equal(t, "Paris", nested[len(nested)-1].Answer)
	assert.NotEqual(t, events[0].RunID, nested[0].RunID)

	assert.Equal(t, 1, terminal)
	assert.True(t, events[len(events)-1].IsTerminal())
}

func TestRunStream_SetupError(t *testing.T) {
	events := collect(New(&mockProvider{}, nil).RunStream(context.Background(), "task", WithMode("all")))

	require.Len(t, events, 1)
	assert.Equal(t, event.RunError, events[0].Type)
	require.NotNil(t, events[0].Error)
}

// --- Prompt Tests ---

func TestSystemPrompt(t *testing.T) {
	registry := New(&mockProvider{}, tool.NewRegistry().Add(addTool())).Tools()

	t.Run("tool calling lists tools", func(t *testing.T) {
		prompt, err := systemPrompt(registry, ApplyOptions())
		require.NoError(t, err)

		assert.Contains(t, prompt, "- add: Add two numbers")
		assert.Contains(t, prompt, "- final_answer:")
		assert.Contains(t, prompt, "Action:")
	})

	t.Run("code mode lists signatures and imports", func(t *testing.T) {
		prompt, err := systemPrompt(registry, ApplyOptions(WithMode(resolve.ModeCode), WithInstructions("Be brief.")))
		require.NoError(t, err)

		assert.Contains(t, prompt, "- add(a, b) -> string: Add two numbers")
		assert.Contains(t, prompt, "You can import these modules: math, json.")
		assert.Contains(t, prompt, "Be brief.")
		assert.NotContains(t, prompt, "- final_answer:")
	})

	t.Run("custom template", func(t *testing.T) {
		prompt, err := systemPrompt(registry, ApplyOptions(WithSystemPrompt("Tools: {{range .Tools}}{{.Name}} {{end}}")))
		require.NoError(t, err)
		assert.Equal(t, "Tools: add final_answer", prompt)
	})

	t.Run("invalid template", func(t *testing.T) {
		_, err := systemPrompt(registry, ApplyOptions(WithSystemPrompt("{{.Missing")))
		assert.Error(t, err)
	})
}

// --- Parallel and Team Tests ---

func TestRunParallel(t *testing.T) {
	jobs := []Job{
		{Agent: New(&mockProvider{responses: []mockResponse{nativeCall("final_answer", `{"answer": "a"}`)}}, nil), Task: "first"},
		{Agent: New(&mockProvider{responses: []mockResponse{nativeCall("final_answer", `{"answer": "b"}`)}}, nil), Task: "second"},
		{Agent: New(&mockProvider{}, nil), Task: "third", Options: []Option{WithMaxSteps(1)}},
	}

	results, err := RunParallel(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Text())
	assert.Equal(t, "b", results[1].Text())
	assert.Equal(t, OutcomeBudgetExhausted, results[2].Outcome)
}

func TestRunParallel_SetupError(t *testing.T) {
	jobs := []Job{
		{Agent: New(&mockProvider{}, nil), Task: "bad", Options: []Option{WithMode("all")}},
	}

	_, err := RunParallel(context.Background(), jobs, 0)
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestTeam(t *testing.T) {
	team := NewTeam().
		Register("researcher", "Searches the web", New(&mockProvider{}, nil)).
		Register("analyst", "Crunches numbers", New(&mockProvider{}, nil), WithToolMaxSteps(2))

	assert.Equal(t, 2, team.Len())
	assert.Equal(t, []string{"researcher", "analyst"}, team.Names())
	require.NotNil(t, team.Get("analyst"))
	assert.Nil(t, team.Get("missing"))

	registry := team.Registry()
	entry, err := registry.Lookup("researcher")
	require.NoError(t, err)
	assert.Equal(t, "Searches the web", entry.Tool.Description)
	assert.Equal(t, []string{"task"}, entry.Params())

	other := tool.NewRegistry().Add(addTool())
	require.NoError(t, team.RegisterTo(other))
	assert.Equal(t, []string{"add", "researcher", "analyst"}, other.Names())

	t.Run("empty description keeps the default", func(t *testing.T) {
		entry, err := NewTeam().Register("helper", "", New(&mockProvider{}, nil)).Registry().Lookup("helper")
		require.NoError(t, err)
		assert.Contains(t, entry.Tool.Description, "Delegate a task to the helper agent")
	})

	t.Run("name clash with an existing tool", func(t *testing.T) {
		clash := tool.NewRegistry().Add(addTool())
		err := NewTeam().Register("add", "", New(&mockProvider{}, nil)).RegisterTo(clash)
		assert.Error(t, err)
	})
}

func TestNewTool_RejectsEmptyTask(t *testing.T) {
	reg := NewTool("helper", New(&mockProvider{}, nil))

	_, err := reg.Handler(context.Background(), ai.ToolCall{Name: "helper", Arguments: `{"task": "  "}`})
	assert.Error(t, err)
}
