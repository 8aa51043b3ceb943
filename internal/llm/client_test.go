// internal/llm/client_test.go
package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flawstrail/internal/config"
	"flawstrail/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL string) (Client, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	c, err := New(config.Config{
		LLMBaseURL:   baseURL,
		LLMModel:     "gpt-4-turbo",
		LLMAPIKey:    "test-key",
		LLMTimeout:   2 * time.Second,
		LLMMaxTokens: 1500,
	}, m)
	require.NoError(t, err)
	return c, m
}

func TestNew_NoAPIKey(t *testing.T) {
	_, err := New(config.Config{}, metrics.New())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4-turbo", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 0.001)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"analysis text"}}]}`))
	}))
	defer srv.Close()

	c, m := testClient(t, srv.URL)
	got, err := c.Complete(context.Background(), "what happened?")
	require.NoError(t, err)
	assert.Equal(t, "analysis text", got)
	assert.Equal(t, int64(1), m.LLMCallsTotal)
	assert.Equal(t, int64(0), m.LLMErrorsTotal)
}

func TestComplete_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c, m := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int64(1), m.LLMErrorsTotal)
}

func TestComplete_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestComplete_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c, m := testClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, int64(1), m.LLMErrorsTotal)
}
