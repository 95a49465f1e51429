package ollama

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/processing"
)

func newTestClient(t *testing.T, model string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/chat", model, 0.3, processing.NewProcessor(processing.DefaultOptions()))
	require.NoError(t, err)
	return c
}

func TestAnalyze(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, "llava:13b", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava:13b","message":{"role":"assistant","content":"{\"items\":[]}"},"done":true,"prompt_eval_count":30,"eval_count":5}` + "\n"))
	})

	resp, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 40, 40)), "list items")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, resp.Text)
	assert.Equal(t, int64(35), resp.Usage.TotalTokens)
	assert.NotNil(t, resp.Sent)

	assert.Equal(t, "llava:13b", req["model"])
	assert.Equal(t, false, req["stream"])
	msgs := req["messages"].([]any)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "list items", msg["content"])
	assert.Len(t, msg["images"], 1)
	assert.InDelta(t, 0.3, req["options"].(map[string]any)["temperature"], 1e-9)
}

func TestAnalyzeEmptyResponse(t *testing.T) {
	c := newTestClient(t, "llava", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"  "},"done":true}` + "\n"))
	})
	_, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
}

func TestAnalyzeStatusErrors(t *testing.T) {
	c := newTestClient(t, "llava", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	})
	_, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
	assert.ErrorIs(t, err, client.ErrRateLimited)

	c = newTestClient(t, "llava", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model crashed"}`))
	})
	_, err = c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
	assert.ErrorIs(t, err, client.ErrNetwork)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost", "llava", 0, nil)
	assert.Error(t, err)
}

func TestModelOptions(t *testing.T) {
	opts := modelOptions("openbmb/minicpm-v4.5", 0)
	assert.Equal(t, 4096, opts["num_ctx"])
	assert.NotContains(t, opts, "temperature")

	opts = modelOptions("llava", 0.2)
	assert.Equal(t, 0.2, opts["temperature"])
	assert.NotContains(t, opts, "num_ctx")
}
