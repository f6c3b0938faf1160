package sonara

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClientProvider abstracts the single operation this core needs
// from OpenAI's official SDK, so tests can substitute a fake.
type OpenAIClientProvider interface {
	// CreateCompletion creates a new chat completion using OpenAI's API.
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIClient implements OpenAIClientProvider using the official SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates an OpenAIClient with the provided API key and
// optional request options.
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// CreateCompletion implements OpenAIClientProvider.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// OpenAICompletionConfig holds configuration for OpenAICompletionClient.
type OpenAICompletionConfig struct {
	// Client is the OpenAIClientProvider implementation to use.
	Client OpenAIClientProvider
	// Model specifies which model to use. Defaults to DefaultModel.
	Model openai.ChatModel
}

// OpenAICompletionClient is a CompletionClient backed by OpenAI's
// official SDK, for applications already carrying it. Failures map onto
// the same taxonomy as the HTTP client: SDK call errors are transport
// failures, a response without choices is an empty response.
type OpenAICompletionClient struct {
	client OpenAIClientProvider
	model  openai.ChatModel
}

// NewOpenAICompletionClient creates a client from configuration.
func NewOpenAICompletionClient(config OpenAICompletionConfig) *OpenAICompletionClient {
	if config.Model == "" {
		config.Model = DefaultModel
	}

	return &OpenAICompletionClient{
		client: config.Client,
		model:  config.Model,
	}
}

// Complete implements CompletionClient.
func (c *OpenAICompletionClient) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(toOpenAIMessages(messages)),
		Model:    openai.F(c.model),
	}

	completion, err := c.client.CreateCompletion(ctx, params)
	if err != nil {
		return "", &CompletionError{Kind: CompletionErrorTransport, Err: err}
	}

	if len(completion.Choices) == 0 {
		return "", &CompletionError{Kind: CompletionErrorEmpty}
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case AssistantRole:
			converted = append(converted, openai.AssistantMessage(msg.Text))
		default:
			converted = append(converted, openai.UserMessage(msg.Text))
		}
	}
	return converted
}
