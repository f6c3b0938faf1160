package sonara

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCompletionClient struct {
	reply string
	err   error
}

func (s *staticCompletionClient) Complete(_ context.Context, _ []Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestTracingCompletionClient_PassesThroughReply(t *testing.T) {
	traced := NewTracingCompletionClient(&staticCompletionClient{reply: "Hi there!"})

	reply, err := traced.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
}

func TestTracingCompletionClient_PassesThroughError(t *testing.T) {
	inner := &staticCompletionClient{err: &CompletionError{Kind: CompletionErrorTransport}}
	traced := NewTracingCompletionClient(inner)

	_, err := traced.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorTransport, ce.Kind)
}
