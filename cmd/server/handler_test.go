package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/agent"
	"github.com/spetersoncode/gambit/internal/demo"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/store"
)

// scriptedProvider answers every call with the next scripted content.
type scriptedProvider struct {
	mu       sync.Mutex
	contents []string
	calls    [][]ai.Message
}

func (p *scriptedProvider) next(messages []ai.Message) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, messages)
	if len(p.contents) == 0 {
		return "no more responses"
	}
	c := p.contents[0]
	p.contents = p.contents[1:]
	return c
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	return &ai.Response{Content: p.next(messages), Usage: ai.Usage{InputTokens: 5, OutputTokens: 5}}, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	content := p.next(messages)
	ch := make(chan ai.StreamEvent, 2)
	ch <- ai.StreamEvent{Delta: content}
	ch <- ai.StreamEvent{Done: true, Response: &ai.Response{Content: content, Usage: ai.Usage{InputTokens: 5, OutputTokens: 5}}}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, contents ...string) (*httptest.Server, *scriptedProvider) {
	t.Helper()
	provider := &scriptedProvider{contents: contents}
	a := agent.New(provider, demo.Registry(), agent.WithMode(resolve.ModeCode))
	h := NewAgentHandler(a, store.NewMemoryAdapter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(newMux(h))
	t.Cleanup(srv.Close)
	return srv, provider
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/agent", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// eventTypes reads the SSE "event:" lines of a response body.
func eventTypes(t *testing.T, r io.Reader) []string {
	t.Helper()
	var types []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if typ, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			types = append(types, typ)
		}
	}
	require.NoError(t, scanner.Err())
	return types
}

const finalAnswer = "Thought: done.\n```py\nfinal_answer(2 + 2)\n```"

func TestAgentHandler_Streams(t *testing.T) {
	srv, _ := newTestServer(t, finalAnswer)

	resp := post(t, srv.URL, `{
		"thread_id": "thread-1",
		"run_id": "run-1",
		"messages": [{"id": "m1", "role": "user", "content": "What is 2+2?"}],
		"forwarded_props": {"snapshot": true}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	types := eventTypes(t, resp.Body)
	require.NotEmpty(t, types)
	assert.Equal(t, "RUN_STARTED", types[0])
	assert.Equal(t, "RUN_FINISHED", types[len(types)-1])
	assert.Equal(t, "MESSAGES_SNAPSHOT", types[len(types)-2])
	assert.Contains(t, types, "TOOL_CALL_START")
	assert.Contains(t, types, "TEXT_MESSAGE_CONTENT")

	t.Run("run memory is saved", func(t *testing.T) {
		listResp, err := http.Get(srv.URL + "/api/runs")
		require.NoError(t, err)
		defer listResp.Body.Close()
		var list struct {
			Runs []string `json:"runs"`
		}
		require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
		assert.Equal(t, []string{"run-1"}, list.Runs)

		getResp, err := http.Get(srv.URL + "/api/runs/run-1")
		require.NoError(t, err)
		defer getResp.Body.Close()
		require.Equal(t, http.StatusOK, getResp.StatusCode)
		body, err := io.ReadAll(getResp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "final_answer")
	})

	t.Run("unknown run", func(t *testing.T) {
		getResp, err := http.Get(srv.URL + "/api/runs/run-404")
		require.NoError(t, err)
		defer getResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
	})
}

func TestAgentHandler_HistoryIsFoldedIntoTask(t *testing.T) {
	srv, provider := newTestServer(t, finalAnswer)

	resp := post(t, srv.URL, `{
		"thread_id": "thread-1",
		"run_id": "run-2",
		"messages": [
			{"id": "m1", "role": "user", "content": "My name is Ada."},
			{"id": "m2", "role": "assistant", "content": "Hello Ada."},
			{"id": "m3", "role": "user", "content": "What is 2+2?"}
		]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	eventTypes(t, resp.Body)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.NotEmpty(t, provider.calls)
	var prompt strings.Builder
	for _, msg := range provider.calls[0] {
		prompt.WriteString(msg.Content)
	}
	assert.Contains(t, prompt.String(), "user: My name is Ada.")
	assert.Contains(t, prompt.String(), "Current request: What is 2+2?")
}

func TestAgentHandler_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no messages", `{"thread_id": "t", "run_id": "r", "messages": []}`},
		{"no task", `{"messages": [{"id": "m1", "role": "assistant", "content": "hi"}]}`},
		{"bad mode", `{"messages": [{"id": "m1", "role": "user", "content": "hi"}], "forwarded_props": {"mode": "json"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/agent")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestWithHistory(t *testing.T) {
	assert.Equal(t, "task", withHistory("task", nil))
	assert.Equal(t, "task", withHistory("task", []ai.Message{{Role: ai.RoleSystem, Content: "sys"}}))

	got := withHistory("next", []ai.Message{
		{Role: ai.RoleUser, Content: "first"},
		{Role: ai.RoleAssistant, Content: "reply"},
	})
	assert.Equal(t, "Conversation so far:\nuser: first\nassistant: reply\n\nCurrent request: next", got)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
