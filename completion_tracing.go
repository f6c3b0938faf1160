package sonara

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sonara-lab/sonara/observability"
)

// TracingCompletionClient implements the decorator pattern for tracing.
type TracingCompletionClient struct {
	client CompletionClient
}

// NewTracingCompletionClient creates a tracing decorator for any
// CompletionClient.
func NewTracingCompletionClient(client CompletionClient) *TracingCompletionClient {
	return &TracingCompletionClient{client: client}
}

// Complete implements CompletionClient with added tracing.
func (t *TracingCompletionClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, span := observability.StartSpan(ctx, "CompletionClient.Complete")
	defer span.End()

	startTime := time.Now()

	reply, err := t.client.Complete(ctx, messages)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("message_count", len(messages)),
		attribute.Int("reply_length", len(reply)),
		attribute.Float64("completion_time", time.Since(startTime).Seconds()),
	)

	return reply, nil
}
