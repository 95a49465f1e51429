package cache

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/declutter/pkg/client"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Analyze(ctx context.Context, img image.Image, prompt string) (*client.Response, error) {
	args := m.Called(ctx, img, prompt)
	if resp, ok := args.Get(0).(*client.Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	entry, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, store.Set("k", &Entry{Text: "one", InputTokens: 3}))
	require.NoError(t, store.Set("k", &Entry{Text: "two", OutputTokens: 4}))

	entry, err = store.Get("k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "two", entry.Text)
	assert.Equal(t, int64(4), entry.OutputTokens)
	assert.Zero(t, entry.InputTokens)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClientServesRepeatsFromCache(t *testing.T) {
	inner := new(mockClient)
	sent := solid(20, 10, color.RGBA{10, 200, 30, 255})
	inner.On("Analyze", mock.Anything, mock.Anything, "pass 1").
		Return(&client.Response{Text: `{"items":[]}`, Sent: sent, Usage: client.Usage{InputTokens: 5, OutputTokens: 2}}, nil).
		Once()

	c := New(inner, "openai", openTestStore(t))
	photo := solid(40, 20, color.RGBA{1, 2, 3, 255})

	first, err := c.Analyze(context.Background(), photo, "pass 1")
	require.NoError(t, err)
	second, err := c.Analyze(context.Background(), photo, "pass 1")
	require.NoError(t, err)
	inner.AssertExpectations(t)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int64(7), second.Usage.TotalTokens)
	require.NotNil(t, second.Sent)
	assert.Equal(t, sent.Bounds().Size(), second.Sent.Bounds().Size())
	r, g, b, _ := second.Sent.At(5, 5).RGBA()
	assert.Equal(t, []uint32{10, 200, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestClientKeysOnPromptAndPixels(t *testing.T) {
	inner := new(mockClient)
	inner.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(&client.Response{Text: "x"}, nil).Times(3)

	c := New(inner, "ollama", openTestStore(t))
	a := solid(8, 8, color.RGBA{255, 0, 0, 255})
	b := solid(8, 8, color.RGBA{0, 0, 255, 255})

	for _, call := range []struct {
		img    image.Image
		prompt string
	}{{a, "p1"}, {a, "p2"}, {b, "p1"}, {a, "p1"}} {
		_, err := c.Analyze(context.Background(), call.img, call.prompt)
		require.NoError(t, err)
	}
	inner.AssertNumberOfCalls(t, "Analyze", 3)
}

func TestClientDoesNotCacheFailures(t *testing.T) {
	inner := new(mockClient)
	failure := client.NewError("openai", client.KindRateLimit, errors.New("slow down"))
	inner.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(nil, failure).Twice()

	store := openTestStore(t)
	c := New(inner, "openai", store)
	img := solid(4, 4, color.RGBA{A: 255})

	for i := 0; i < 2; i++ {
		_, err := c.Analyze(context.Background(), img, "p")
		assert.ErrorIs(t, err, client.ErrRateLimited)
	}
	inner.AssertExpectations(t)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKey(t *testing.T) {
	img := solid(4, 4, color.RGBA{9, 9, 9, 255})
	assert.Equal(t, Key("a", "p", img), Key("a", "p", img))
	assert.NotEqual(t, Key("a", "p", img), Key("b", "p", img))
	assert.NotEqual(t, Key("a", "p", img), Key("a", "p", solid(2, 8, color.RGBA{9, 9, 9, 255})))
	assert.Len(t, Key("a", "p", nil), 64)
}
