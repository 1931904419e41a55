package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// GatewayOptions tunes gateway behavior independent of the per-call settings.
type GatewayOptions struct {
	// RateLimitRPS is the sustained outbound request rate. Zero disables
	// rate limiting.
	RateLimitRPS float64
	// RateLimitBurst is the token bucket burst size (defaults to 1 when
	// rate limiting is enabled).
	RateLimitBurst int
}

// Gateway is the single-call chat entry point for the pipeline. It resolves
// the active provider from a SettingsProvider on every call, so a settings
// change between calls takes effect immediately. The gateway performs no
// retries and no logging of its own; callers log through the usage logger.
type Gateway struct {
	settings SettingsProvider
	limiter  *rate.Limiter

	mu           sync.Mutex
	client       Client
	clientKey    string
	lastProvider string
	lastModel    string
}

// NewGateway creates a Gateway resolving provider settings through sp.
func NewGateway(sp SettingsProvider, opts GatewayOptions) *Gateway {
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return &Gateway{
		settings: sp,
		limiter:  limiter,
	}
}

// Chat resolves the current settings, rate-limits, and forwards the prompt to
// the active provider. A blank API key fails immediately without a network
// call.
func (g *Gateway) Chat(ctx context.Context, prompt string) (string, error) {
	settings, err := g.settings.Settings()
	if err != nil {
		return "", fmt.Errorf("llm: resolve settings: %w", err)
	}

	if strings.TrimSpace(settings.APIKey) == "" {
		return "", ErrMissingAPIKey
	}

	client, err := g.clientFor(settings)
	if err != nil {
		return "", err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limiter: %w", err)
		}
	}

	return client.Chat(ctx, prompt)
}

// Provider returns the provider used by the most recent call, or the currently
// configured provider when no call has been made yet. Callers use it to tag
// usage log entries accurately even when the settings change between calls.
func (g *Gateway) Provider() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastProvider != "" {
		return g.lastProvider
	}
	if s, err := g.settings.Settings(); err == nil {
		return s.Provider
	}
	return ""
}

// Model returns the model of the most recent call, if any.
func (g *Gateway) Model() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastModel
}

// clientFor returns a provider client matching the settings, reusing the
// cached client while the provider/key/model/endpoint stay unchanged.
func (g *Gateway) clientFor(s Settings) (Client, error) {
	key := s.Provider + "\x00" + s.APIKey + "\x00" + s.Model + "\x00" + s.BaseURL

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil || g.clientKey != key {
		client, err := newClient(s)
		if err != nil {
			return nil, err
		}
		g.client = client
		g.clientKey = key
	}

	g.lastProvider = g.client.Provider()
	g.lastModel = g.client.Model()
	return g.client, nil
}

// newClient creates a provider client from resolved settings. Supports
// "anthropic" and "openai".
func newClient(s Settings) (Client, error) {
	cfg := ClientConfig{
		APIKey:      s.APIKey,
		Model:       s.Model,
		BaseURL:     s.BaseURL,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.Timeout,
	}

	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, s.Provider)
	}
}
