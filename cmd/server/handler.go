package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/agent"
	"github.com/spetersoncode/gambit/agui"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/store"
)

// RunProps are the forwarded props a client may send to adjust one run.
type RunProps struct {
	Mode     string `json:"mode"`
	MaxSteps int    `json:"max_steps"`
	Snapshot bool   `json:"snapshot"`
}

// AgentHandler runs an agent for AG-UI requests and streams events over SSE.
// Each run's memory is saved in the store under the run ID.
type AgentHandler struct {
	agent  *agent.Agent
	store  store.Adapter
	logger *slog.Logger
}

// NewAgentHandler creates a handler for the given agent.
func NewAgentHandler(a *agent.Agent, s store.Adapter, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{agent: a, store: s, logger: logger}
}

// ServeHTTP handles POST requests to run the agent and stream events via SSE.
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		h.logger.Warn("method not allowed", "method", r.Method, "path", r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input agui.RunAgentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	prepared, err := input.Prepare()
	if err != nil {
		h.logger.Warn("invalid input", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	props, err := agui.DecodeProps[RunProps](prepared)
	if err != nil {
		http.Error(w, "Invalid forwarded props: "+err.Error(), http.StatusBadRequest)
		return
	}
	if props.Mode != "" && !resolve.Mode(props.Mode).Valid() {
		http.Error(w, fmt.Sprintf("unknown mode: %s", props.Mode), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	mapper := agui.NewMapper(prepared.ThreadID, prepared.RunID)
	log := h.logger.With("run_id", mapper.RunID(), "thread_id", mapper.ThreadID())
	log.Info("request started", "history", len(prepared.History))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	mem := memory.New()
	opts := []agent.Option{agent.WithMemory(mem)}
	if props.Mode != "" {
		opts = append(opts, agent.WithMode(resolve.Mode(props.Mode)))
	}
	if props.MaxSteps > 0 {
		opts = append(opts, agent.WithMaxSteps(props.MaxSteps))
	}

	task := withHistory(prepared.Task, prepared.History)
	stream := mapper.MapStream(h.agent.RunStream(r.Context(), task, opts...))

	var sent int
	for ev := range stream {
		if props.Snapshot && ev.Type() == aguievents.EventTypeRunFinished {
			if err := writeSSE(w, flusher, agui.Snapshot(mem)); err != nil {
				log.Error("failed to write snapshot", "error", err)
			}
			sent++
		}
		if err := writeSSE(w, flusher, ev); err != nil {
			log.Error("failed to write SSE event", "error", err, "event_type", ev.Type())
			// drain so the run can finish
			for range stream {
			}
			break
		}
		sent++
	}

	if err := memory.Save(context.WithoutCancel(r.Context()), h.store, mapper.RunID(), mem); err != nil {
		log.Warn("failed to save memory", "error", err)
	}

	log.Info("request completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"events_sent", sent,
		"steps", len(mem.ActionSteps()),
	)
}

// RunsHandler serves saved run memories as JSON.
type RunsHandler struct {
	store store.Adapter
}

// List writes the IDs of all saved runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.Keys(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, map[string]any{"runs": keys})
}

// Get writes the memory saved for one run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	mem, err := memory.Load(r.Context(), h.store, r.PathValue("id"))
	if errors.Is(err, store.ErrInvalidKey) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, mem)
}

// withHistory folds earlier conversation turns into the task, since each
// run starts from a fresh memory.
func withHistory(task string, history []ai.Message) string {
	var b strings.Builder
	for _, msg := range history {
		if msg.Content == "" || (msg.Role != ai.RoleUser && msg.Role != ai.RoleAssistant) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	if b.Len() == 0 {
		return task
	}
	return "Conversation so far:\n" + b.String() + "\nCurrent request: " + task
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func newMux(h *AgentHandler) *http.ServeMux {
	runs := &RunsHandler{store: h.store}
	mux := http.NewServeMux()
	mux.Handle("/api/agent", corsMiddleware(h))
	mux.HandleFunc("GET /api/runs", runs.List)
	mux.HandleFunc("GET /api/runs/{id}", runs.Get)
	mux.HandleFunc("/health", healthHandler)
	return mux
}
