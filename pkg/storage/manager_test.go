package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := OutputDir(t.TempDir(), "cat")

	manager, err := NewManager(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NotNil(t, manager)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	data := []byte("image bytes")
	path, err := manager.SaveImage(data, "cat_42.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cat_42.png"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveImageReplacesExisting(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = manager.SaveImage([]byte("first"), "a.gif")
	require.NoError(t, err)
	path, err := manager.SaveImage([]byte("second"), "a.gif")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestSaveImageRejectsPaths(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.png", "sub/dir.png"} {
		_, err := manager.SaveImage([]byte("x"), name)
		assert.Error(t, err, name)
	}
}

func TestSaveImageConcurrent(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.SaveImage([]byte{byte(i)}, RandomName("cat")+string(rune('a'+i))+".png")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"red panda!", "redpanda"},
		{"c-a_t 42", "cat42"},
		{"café", "café"},
		{"x² ½ cup", "x²½cup"},
		{"١٢٣ arabic", "١٢٣arabic"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeKey(tt.in), tt.in)
	}
}

func TestRandomName(t *testing.T) {
	pattern := regexp.MustCompile(`^redpanda_(\d{1,4})$`)
	for i := 0; i < 50; i++ {
		name := RandomName("red panda!")
		assert.Regexp(t, pattern, name)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		url     string
		format  string
		keep    bool
		pattern string
	}{
		{"random", "cat", "https://example.com/photo.jpg", "jpeg", false, `^cat_\d{1,4}\.jpeg$`},
		{"keep basename", "cat", "https://example.com/a/photo.jpg?x=1", "jpeg", true, `^photo\.jpeg$`},
		{"keep without extension", "cat", "https://example.com/images/abc", "png", true, `^abc\.png$`},
		{"keep empty path falls back", "cat", "https://example.com/", "gif", true, `^cat_\d{1,4}\.gif$`},
		{"format lowercased", "dog", "https://example.com/x", "PNG", false, `^dog_\d{1,4}\.png$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, regexp.MustCompile(tt.pattern), FileName(tt.key, tt.url, tt.format, tt.keep))
		})
	}
}

func TestURLBaseName(t *testing.T) {
	assert.Equal(t, "photo", URLBaseName("https://example.com/a/photo.jpg"))
	assert.Equal(t, "", URLBaseName("https://example.com"))
	assert.Equal(t, "", URLBaseName("://bad"))
}
