package gemini

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/declutter/pkg/client"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{APIKey: "key", BaseURL: srv.URL, Temperature: 0.3}, nil)
	require.NoError(t, err)
	return c
}

func TestAnalyze(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultModel+":generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"items\":[]}"}]}}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10}
		}`))
	})

	resp, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 16)), "count things")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, resp.Text)
	assert.Equal(t, int64(10), resp.Usage.TotalTokens)
	assert.NotNil(t, resp.Sent)

	contents := body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "count things", parts[0].(map[string]any)["text"])
	assert.Equal(t, "image/jpeg", parts[1].(map[string]any)["inlineData"].(map[string]any)["mimeType"])
}

func TestAnalyzeUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`))
	})
	_, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
	assert.ErrorIs(t, err, client.ErrAuth)
}

func TestNewClientWithoutKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, client.ErrAuth)
}
