package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	ai "github.com/spetersoncode/gambit"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// Client wraps the Anthropic SDK to implement ai.ChatProvider.
type Client struct {
	client *anthropic.Client
	model  string
}

// ClientOption configures the Anthropic client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat sends a conversation and returns a complete response.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	params := c.params(messages, ai.ApplyOptions(opts...))

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	return toResponse(resp), nil
}

// ChatStream sends a conversation and returns a channel of streaming events.
func (c *Client) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	params := c.params(messages, ai.ApplyOptions(opts...))

	stream := c.client.Messages.NewStreaming(ctx, params)
	ch := make(chan ai.StreamEvent)

	go func() {
		defer close(ch)
		defer stream.Close()
		var acc anthropic.Message

		send := func(ev ai.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				send(ai.StreamEvent{Err: ai.NewPermanentError("anthropic: accumulate stream", 0, err)})
				return
			}

			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta()
				if text := delta.Delta.AsTextDelta(); text.Type == "text_delta" && text.Text != "" {
					if !send(ai.StreamEvent{Delta: text.Text}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			send(ai.StreamEvent{Err: wrapError(err)})
			return
		}
		send(ai.StreamEvent{Done: true, Response: toResponse(&acc)})
	}()

	return ch, nil
}

func (c *Client) params(messages []ai.Message, options *ai.Options) anthropic.MessageNewParams {
	model := c.model
	if options.Model != "" {
		model = options.Model
	}
	maxTokens := int64(defaultMaxTokens)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	msgs, system := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	if len(options.StopSequences) > 0 {
		params.StopSequences = options.StopSequences
	}
	if len(options.Tools) > 0 {
		params.Tools = convertTools(options.Tools)
		if options.ToolChoice != "" {
			params.ToolChoice = convertToolChoice(options.ToolChoice)
		}
	}
	return params
}

func toResponse(msg *anthropic.Message) *ai.Response {
	content := ""
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return &ai.Response{
		Content:      content,
		FinishReason: string(msg.StopReason),
		Usage: ai.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		ToolCalls: extractToolCalls(msg.Content),
	}
}

var _ ai.ChatProvider = (*Client)(nil)
