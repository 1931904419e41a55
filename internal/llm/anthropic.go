package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	// defaultAnthropicBaseURL is the public Anthropic API endpoint.
	defaultAnthropicBaseURL = "https://api.anthropic.com"

	// defaultAnthropicModel is used when the settings leave the model blank.
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Anthropic Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
}

// anthropicAPIErrorDetail represents the nested error object in an Anthropic API error response.
type anthropicAPIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorResponse wraps the error payload from the Anthropic API.
type anthropicErrorResponse struct {
	Type  string                  `json:"type"`
	Error anthropicAPIErrorDetail `json:"error"`
}

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// ClientConfig holds the parameters needed to create a provider client.
// This is defined in the llm package to avoid importing the config package.
type ClientConfig struct {
	// APIKey is the provider API key.
	APIKey string
	// Model is the model identifier (empty means the provider default).
	Model string
	// BaseURL is the API base URL (empty means the provider default).
	BaseURL string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the response length (0 means the provider default).
	MaxTokens int
	// Timeout is the per-call HTTP client timeout.
	Timeout time.Duration
}

// NewAnthropicClient creates a new AnthropicClient with the given configuration.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &AnthropicClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Chat sends one prompt to the Anthropic Messages API and returns the text of
// the first text content block. A response whose shape cannot be parsed does
// not fail hard: the trimmed raw body, with surrounding quotes stripped, is
// returned instead, because the caller degrades gracefully on malformed model
// output.
func (c *AnthropicClient) Chat(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	apiReq := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return "", &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fallbackText(respBody), nil
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}

	return fallbackText(respBody), nil
}

// Provider returns the provider name.
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Model returns the model identifier being used.
func (c *AnthropicClient) Model() string {
	return c.model
}

// parseAnthropicAPIError parses an Anthropic API error from the response status code and body.
func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}

	return apiErr
}

// fallbackText treats a raw response body as the message: trimmed, with one
// layer of surrounding quotes stripped.
func fallbackText(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}
