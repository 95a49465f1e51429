package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tiff": true, "webp": true,
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return imageExts[GetFileExtension(filename)]
}

// IsURL reports whether source is an http(s) address
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ExpandInputs turns comma separated files, directories and URLs into an
// ordered list of photo sources. Directories contribute their image files in
// lexical order; duplicates are dropped.
func ExpandInputs(specs []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, spec := range specs {
		for _, src := range strings.Split(spec, ",") {
			src = strings.TrimSpace(src)
			switch {
			case src == "":
				continue
			case IsURL(src):
				add(src)
			case DirExists(src):
				files, err := ListImageFiles(src)
				if err != nil {
					return nil, fmt.Errorf("failed to list %s: %w", src, err)
				}
				for _, f := range files {
					add(f)
				}
			case FileExists(src):
				add(src)
			default:
				return nil, fmt.Errorf("input not found: %s", src)
			}
		}
	}
	return out, nil
}

// ThumbnailFilename names the thumbnail of an item from a given photo
func ThumbnailFilename(outputDir string, photo int, label, id, format string) string {
	name := SanitizeFilename(strings.ToLower(label))
	name = strings.Join(strings.Fields(name), "-")
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(outputDir, "thumbs", fmt.Sprintf("p%d_%s_%s.%s", photo, name, id, format))
}

// ListImageFiles recursively lists all image files in a directory, sorted
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in filenames
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, filename)

	// Remove leading/trailing spaces and dots
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
