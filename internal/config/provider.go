package config

import (
	"context"
	"fmt"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/internal/provider/anthropic"
	"github.com/spetersoncode/gambit/internal/provider/google"
	"github.com/spetersoncode/gambit/internal/provider/openai"
)

// NewProvider creates the ChatProvider selected by c.Provider.
func NewProvider(ctx context.Context, c *Config) (ai.ChatProvider, error) {
	switch c.Provider {
	case ai.ProviderAnthropic.String():
		var opts []anthropic.ClientOption
		if c.Model != "" {
			opts = append(opts, anthropic.WithModel(c.Model))
		}
		return anthropic.New(c.AnthropicKey, opts...), nil
	case ai.ProviderOpenAI.String():
		var opts []openai.ClientOption
		if c.Model != "" {
			opts = append(opts, openai.WithModel(c.Model))
		}
		return openai.New(c.OpenAIKey, opts...), nil
	case ai.ProviderGoogle.String():
		return google.New(ctx, c.GoogleKey, googleOptions(c)...)
	case "vertex":
		return google.NewVertex(ctx, c.VertexProject, c.VertexLocation, googleOptions(c)...)
	default:
		return nil, fmt.Errorf("unknown provider: %s", c.Provider)
	}
}

func googleOptions(c *Config) []google.ClientOption {
	if c.Model == "" {
		return nil
	}
	return []google.ClientOption{google.WithModel(c.Model)}
}
