package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
)

func embeddingServer(t *testing.T, handler func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "test-model",
		"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
	})
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("REGAUDIT_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "REGAUDIT_TEST_KEY", Model: "test-model", MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func TestClient_Embed(t *testing.T) {
	srv, _ := embeddingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		writeEmbedding(w, []float32{0.5, 0.25, 0})
	})
	c := newTestClient(t, srv.URL)

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "openai/test-model", c.Name())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	srv, calls := embeddingServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		writeEmbedding(w, []float32{1, 0})
	})
	c := newTestClient(t, srv.URL)

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := embeddingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	})
	c := newTestClient(t, srv.URL)

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RejectsDimensionDrift(t *testing.T) {
	srv, _ := embeddingServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			writeEmbedding(w, []float32{1, 0, 0})
			return
		}
		writeEmbedding(w, []float32{1, 0})
	})
	c := newTestClient(t, srv.URL)

	_, err := c.Embed(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "second")
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Setenv("REGAUDIT_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "REGAUDIT_MISSING_KEY"})
	require.Error(t, err)
}
