// Package llm provides the chat-completion gateway for the Potero narrative
// pipeline.
//
// The package hand-rolls thin HTTP clients for the Anthropic Messages API and
// the OpenAI Chat Completions API and exposes them behind a single-call Chat
// contract. The active provider and credential are resolved at call time
// through a SettingsProvider, because the user can change them between calls.
//
// Example usage:
//
//	gw := llm.NewGateway(llm.StaticSettings(llm.Settings{
//		Provider: "anthropic",
//		APIKey:   key,
//		Model:    "claude-sonnet-4-20250514",
//	}), llm.GatewayOptions{})
//	text, err := gw.Chat(ctx, "Summarize this paper ...")
package llm

import "context"

// Client is the provider-specific chat client interface.
//
// Implementations send a single request and return the model's text response.
// No retries happen at this layer; callers that need retries implement them
// themselves.
type Client interface {
	// Chat sends one prompt and returns the text of the model's reply.
	// The context should be used for cancellation and deadline propagation.
	Chat(ctx context.Context, prompt string) (string, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
