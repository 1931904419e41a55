package llm

import "time"

// Settings is the dynamic provider configuration resolved before each call.
// In the desktop application these values come from user settings and can
// change at any time.
type Settings struct {
	// Provider is the active provider name ("anthropic" or "openai").
	Provider string
	// APIKey is the credential for the active provider.
	APIKey string
	// Model is the model identifier (empty means the provider default).
	Model string
	// BaseURL overrides the provider endpoint (empty means the default).
	BaseURL string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the response length (0 means the provider default).
	MaxTokens int
	// Timeout is the per-call time budget enforced by the HTTP client.
	Timeout time.Duration
}

// SettingsProvider yields the current gateway settings. Implementations may
// read from a settings store; the gateway calls it on every Chat.
type SettingsProvider interface {
	Settings() (Settings, error)
}

// SettingsFunc adapts a function to the SettingsProvider interface.
type SettingsFunc func() (Settings, error)

// Settings implements SettingsProvider.
func (f SettingsFunc) Settings() (Settings, error) {
	return f()
}

// StaticSettings returns a SettingsProvider that always yields s.
func StaticSettings(s Settings) SettingsProvider {
	return SettingsFunc(func() (Settings, error) {
		return s, nil
	})
}
