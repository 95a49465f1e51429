package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/client"
)

// Client answers repeated requests from the store and forwards the rest to
// the wrapped backend. Failures never get cached.
type Client struct {
	inner   client.VisionClient
	store   *Store
	backend string
}

// New wraps inner. backend takes part in the key so that replies of
// different models never mix.
func New(inner client.VisionClient, backend string, store *Store) *Client {
	return &Client{inner: inner, store: store, backend: backend}
}

// Analyze implements client.VisionClient
func (c *Client) Analyze(ctx context.Context, img image.Image, prompt string) (*client.Response, error) {
	key := Key(c.backend, prompt, img)

	entry, err := c.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Msg("cache lookup failed")
	}
	if entry != nil {
		resp, err := entry.response()
		if err == nil {
			log.Debug().Str("key", key[:12]).Msg("cache hit")
			return resp, nil
		}
		log.Warn().Err(err).Str("key", key[:12]).Msg("unreadable cache entry")
	}

	resp, err := c.inner.Analyze(ctx, img, prompt)
	if err != nil {
		return nil, err
	}

	entry = &Entry{
		Text:         resp.Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	if resp.Sent != nil {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resp.Sent, imaging.PNG); err == nil {
			entry.Sent = buf.Bytes()
		}
	}
	if err := c.store.Set(key, entry); err != nil {
		log.Warn().Err(err).Msg("cache store failed")
	}
	return resp, nil
}

func (e *Entry) response() (*client.Response, error) {
	resp := &client.Response{
		Text: e.Text,
		Usage: client.Usage{
			InputTokens:  e.InputTokens,
			OutputTokens: e.OutputTokens,
			TotalTokens:  e.InputTokens + e.OutputTokens,
		},
	}
	if len(e.Sent) > 0 {
		sent, err := imaging.Decode(bytes.NewReader(e.Sent))
		if err != nil {
			return nil, err
		}
		resp.Sent = sent
	}
	return resp, nil
}

// Key hashes the backend name, the prompt and the image pixels
func Key(backend, prompt string, img image.Image) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	if img != nil {
		nrgba := imaging.Clone(img)
		var dims [8]byte
		binary.BigEndian.PutUint32(dims[:4], uint32(nrgba.Bounds().Dx()))
		binary.BigEndian.PutUint32(dims[4:], uint32(nrgba.Bounds().Dy()))
		h.Write(dims[:])
		h.Write(nrgba.Pix)
	}
	return hex.EncodeToString(h.Sum(nil))
}
