package storage

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// randomSuffixRange bounds the numeric suffix of generated filenames
const randomSuffixRange = 10000

// Manager writes images into a single output directory
type Manager struct {
	outputDir string
}

// NewManager creates the output directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// OutputDir joins the base directory and the search key
func OutputDir(base, searchKey string) string {
	return filepath.Join(base, searchKey)
}

// SanitizeKey keeps only the letters and numeric characters of a search key
func SanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RandomName returns <sanitized_key>_<n> with n in [0, 10000)
func RandomName(searchKey string) string {
	return fmt.Sprintf("%s_%d", SanitizeKey(searchKey), rand.IntN(randomSuffixRange))
}

// URLBaseName returns the last path segment of rawURL without its extension
func URLBaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileName builds the on-disk name for an image. With keepOriginal the URL
// basename is used; a URL without one falls back to a random name.
func FileName(searchKey, rawURL, format string, keepOriginal bool) string {
	name := ""
	if keepOriginal {
		name = URLBaseName(rawURL)
	}
	if name == "" {
		name = RandomName(searchKey)
	}
	return name + "." + strings.ToLower(format)
}

// SaveImage writes data under name in the output directory and returns the
// full path. An existing file with the same name is replaced.
func (m *Manager) SaveImage(data []byte, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	filename := filepath.Join(m.outputDir, name)

	// Write to a temp file in the same directory, then rename
	out, err := os.CreateTemp(m.outputDir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}
