// Package anthropic implements [gambit.ChatProvider] on the Anthropic
// Messages API.
//
//	client := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))
//	resp, err := client.Chat(ctx, []gambit.Message{
//	    {Role: gambit.RoleUser, Content: "Explain quantum computing briefly."},
//	})
//
// Stop sequences, tools and tool choice map onto the corresponding
// request fields. System messages are joined into the system prompt and
// tool results are sent back as user messages holding tool_result blocks.
package anthropic
