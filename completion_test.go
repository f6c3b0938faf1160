package sonara

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCompletionClient_SuccessTrimsReply(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody ChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Hi there! "}}]}`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{
		Endpoint: server.URL,
		APIKey:   "test-key",
		Model:    "gpt-3.5-turbo",
	})

	reply, err := client.Complete(context.Background(), []Message{
		NewMessage(UserRole, "Hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "gpt-3.5-turbo", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, ChatMessage{Role: "user", Content: "Hello"}, gotBody.Messages[0])
}

func TestHTTPCompletionClient_SendsFullRetainedWindow(t *testing.T) {
	var gotBody ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []Message{
		NewMessage(UserRole, "one"),
		NewMessage(AssistantRole, "two"),
		NewMessage(UserRole, "three"),
	})

	require.NoError(t, err)
	require.Len(t, gotBody.Messages, 3)
	assert.Equal(t, "one", gotBody.Messages[0].Content)
	assert.Equal(t, "assistant", gotBody.Messages[1].Role)
	assert.Equal(t, "three", gotBody.Messages[2].Content)
}

func TestHTTPCompletionClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorTransport, ce.Kind)
}

func TestHTTPCompletionClient_UnexpectedStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorTransport, ce.Kind)
	assert.Contains(t, string(ce.RawBody), "overloaded")
}

func TestHTTPCompletionClient_DecodeFailureRetainsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorDecode, ce.Kind)
	assert.Equal(t, "<html>not json</html>", string(ce.RawBody))
}

func TestHTTPCompletionClient_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorEmpty, ce.Kind)
}

func TestHTTPCompletionClient_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Complete(ctx, []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorTransport, ce.Kind)
}

func TestNewHTTPCompletionClient_Defaults(t *testing.T) {
	client := NewHTTPCompletionClient(HTTPCompletionConfig{Endpoint: "http://example.invalid"})

	assert.Equal(t, DefaultModel, client.model)
	assert.Equal(t, http.DefaultClient, client.client)
}

func TestHTTPCompletionClient_HonorsCustomHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPCompletionClient(HTTPCompletionConfig{
		Endpoint:   server.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Millisecond},
	})

	_, err := client.Complete(context.Background(), []Message{NewMessage(UserRole, "Hello")})

	require.Error(t, err)
	ce := CompletionErrorOf(err)
	require.NotNil(t, ce)
	assert.Equal(t, CompletionErrorTransport, ce.Kind)
}
