// Package google implements gambit.ChatProvider on the Gemini API.
package google

import (
	"context"
	"fmt"

	ai "github.com/spetersoncode/gambit"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gemini-2.5-flash"

// Client wraps the Google GenAI SDK to implement ai.ChatProvider.
type Client struct {
	client *genai.Client
	model  string
}

// ClientOption configures the Google client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewVertex creates a client on the Vertex AI backend. It authenticates with
// Application Default Credentials.
func NewVertex(ctx context.Context, project, location string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat sends a conversation and returns a complete response.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	model, contents, config := c.request(messages, ai.ApplyOptions(opts...))

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}
	}

	content := ""
	var parts []*genai.Part
	finishReason := ""
	if len(resp.Candidates) > 0 {
		finishReason = string(resp.Candidates[0].FinishReason)
		if resp.Candidates[0].Content != nil {
			parts = resp.Candidates[0].Content.Parts
		}
	}
	for _, part := range parts {
		content += part.Text
	}

	return &ai.Response{
		Content:      content,
		FinishReason: finishReason,
		Usage:        usage(resp.UsageMetadata),
		ToolCalls:    extractToolCalls(parts),
	}, nil
}

// ChatStream sends a conversation and returns a channel of streaming events.
func (c *Client) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	model, contents, config := c.request(messages, ai.ApplyOptions(opts...))
	ch := make(chan ai.StreamEvent)

	go func() {
		defer close(ch)

		send := func(ev ai.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var content string
		var finishReason string
		var total ai.Usage
		var allParts []*genai.Part
		received := false

		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(ai.StreamEvent{Err: wrapError(err)})
				return
			}
			received = true

			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				send(ai.StreamEvent{Err: &BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}})
				return
			}

			if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
				for _, part := range resp.Candidates[0].Content.Parts {
					allParts = append(allParts, part)
					if part.Text != "" {
						content += part.Text
						if !send(ai.StreamEvent{Delta: part.Text}) {
							return
						}
					}
				}
				finishReason = string(resp.Candidates[0].FinishReason)
			}
			if resp.UsageMetadata != nil {
				total = usage(resp.UsageMetadata)
			}
		}

		if !received {
			send(ai.StreamEvent{Err: ai.NewTransientError("google: stream returned no data", 0, nil)})
			return
		}

		send(ai.StreamEvent{
			Done: true,
			Response: &ai.Response{
				Content:      content,
				FinishReason: finishReason,
				Usage:        total,
				ToolCalls:    extractToolCalls(allParts),
			},
		})
	}()

	return ch, nil
}

func (c *Client) request(messages []ai.Message, options *ai.Options) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	contents, system := convertMessages(messages)
	config := &genai.GenerateContentConfig{SystemInstruction: system}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		config.Temperature = &temp
	}
	if len(options.StopSequences) > 0 {
		config.StopSequences = options.StopSequences
	}
	if len(options.Tools) > 0 {
		config.Tools = convertTools(options.Tools)
		if options.ToolChoice != "" {
			config.ToolConfig = convertToolChoice(options.ToolChoice)
		}
	}
	return model, contents, config
}

func usage(meta *genai.GenerateContentResponseUsageMetadata) ai.Usage {
	if meta == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		InputTokens:  int(meta.PromptTokenCount),
		OutputTokens: int(meta.CandidatesTokenCount),
	}
}

// BlockedError indicates the request was blocked by content filtering.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked: %s", e.Reason)
}

var _ ai.ChatProvider = (*Client)(nil)
