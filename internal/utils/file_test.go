package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("room.JPG"))
	assert.True(t, IsImageFile("a/b/c.webp"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "photos", "b.jpg"))
	touch(t, filepath.Join(dir, "photos", "a.png"))
	touch(t, filepath.Join(dir, "photos", "readme.md"))
	single := filepath.Join(dir, "single.jpeg")
	touch(t, single)

	got, err := ExpandInputs([]string{
		filepath.Join(dir, "photos") + ", " + single,
		"https://example.com/room.jpg",
		single,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "photos", "a.png"),
		filepath.Join(dir, "photos", "b.jpg"),
		single,
		"https://example.com/room.jpg",
	}, got)

	_, err = ExpandInputs([]string{filepath.Join(dir, "nope.jpg")})
	assert.Error(t, err)
}

func TestThumbnailFilename(t *testing.T) {
	got := ThumbnailFilename("out", 1, "Red Nike: shoe", "1234567890ab", "png")
	assert.Equal(t, filepath.Join("out", "thumbs", "p1_red-nike_-shoe_12345678.png"), got)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFilename(" a/b?c. "))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}
