package llamacpp

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
	return NewClient(ClientOpts{BaseURL: srv.URL + "/", APIKey: "secret", Model: "qwen2-vl"}, nil)
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestAnalyze(t *testing.T) {
	var req ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, completionPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reply(w, `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"{\"items\":[]}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	})

	resp, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 32)), "what is here")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, resp.Text)
	assert.Equal(t, int64(5), resp.Usage.TotalTokens)

	assert.Equal(t, "qwen2-vl", req.Model)
	assert.False(t, req.Stream)
	parts, ok := req.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,"))
}

func TestAnalyzeContentParts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}]}`)
	})
	resp, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: client.ErrAuth,
		},
		{
			name: "overloaded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("loading model"))
			},
			want: client.ErrNetwork,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				reply(w, `{"choices":[]}`)
			},
			want: client.ErrMalformedResponse,
		},
		{
			name: "broken json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				reply(w, `{"choices":[`)
			},
			want: client.ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
