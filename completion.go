package sonara

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-3.5-turbo"

// CompletionClient produces one assistant reply for the retained
// conversation window. Implementations make a single attempt per call;
// every failure is terminal for the turn and reported as a
// *CompletionError.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// chatResponse mirrors the inbound response body. Only the first
// choice's message content is consumed.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPCompletionConfig holds configuration for HTTPCompletionClient.
type HTTPCompletionConfig struct {
	// Endpoint is the full URL of the chat-completion endpoint.
	Endpoint string

	// APIKey is the bearer credential, injected by the caller. The core
	// never reads process-wide configuration.
	APIKey string

	// Model identifies the completion model. Defaults to DefaultModel.
	Model string

	// HTTPClient overrides http.DefaultClient when set.
	HTTPClient *http.Client
}

// HTTPCompletionClient talks to an OpenAI-compatible chat-completion
// endpoint over plain HTTP. It is the only component in the core that
// touches the network.
type HTTPCompletionClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPCompletionClient creates a client from configuration.
func NewHTTPCompletionClient(config HTTPCompletionConfig) *HTTPCompletionClient {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	return &HTTPCompletionClient{
		endpoint: config.Endpoint,
		apiKey:   config.APIKey,
		model:    config.Model,
		client:   config.HTTPClient,
	}
}

// Complete implements CompletionClient. Failures are classified as
// transport (no usable response), decode (body did not parse; the raw
// body is retained for diagnostics) or empty response (no choices).
// On success the first choice's content is returned with surrounding
// whitespace trimmed.
func (c *HTTPCompletionClient) Complete(ctx context.Context, messages []Message) (string, error) {
	payload := BuildChatRequest(c.model, messages)
	body, err := payload.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &CompletionError{Kind: CompletionErrorTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CompletionError{Kind: CompletionErrorTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &CompletionError{
			Kind:    CompletionErrorTransport,
			RawBody: raw,
			Err:     fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &CompletionError{Kind: CompletionErrorDecode, RawBody: raw, Err: err}
	}

	if len(decoded.Choices) == 0 {
		return "", &CompletionError{Kind: CompletionErrorEmpty, RawBody: raw}
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
