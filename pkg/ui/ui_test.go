package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"imgscraper/internal/downloader"
)

func TestQuietModeKeepsErrors(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	SetQuietMode(true)
	t.Cleanup(func() {
		SetQuietMode(false)
		SetNoColor(false)
	})

	PrintInfo("Search key", "cat")
	PrintSuccess("done")
	PrintError("Scrape failed", "boom")

	assert.Equal(t, "Scrape failed: boom\n", buf.String())
	assert.True(t, IsQuiet())
}

func TestNoColor(t *testing.T) {
	SetNoColor(true)
	assert.Equal(t, "plain", Cyan("plain"))
	SetNoColor(false)
	assert.Equal(t, "\033[36mplain\033[0m", Cyan("plain"))
}

func TestProgressDisplay(t *testing.T) {
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	var buf bytes.Buffer
	p := NewProgressDisplayTo(&buf, "cat", 3, false)

	p.OnProxies(10, 2)
	p.OnSearch(1, 3, "https://img.example.com/1.jpg", nil)
	p.OnSearch(2, 3, "", errors.New("status 429"))
	p.OnSearch(3, 3, "", nil)
	p.OnDownload(downloader.DownloadResult{Success: true, Size: 2048, Path: "cat/cat_1.png"})
	p.OnDownload(downloader.DownloadResult{Error: errors.New("decode image")})
	p.Complete("cat")

	searched, queued, saved, failed := p.Counts()
	assert.Equal(t, []int{3, 1, 1, 1}, []int{searched, queued, saved, failed})

	out := buf.String()
	assert.Contains(t, out, "[PROXIES] 2/10 working")
	assert.Contains(t, out, "Images Scraped: 1/3 • searched 3/3")
	assert.NotContains(t, out, "Images Scraped: 3/3")
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, `Saved 1 of 1 queued images for "cat"`)
}

func TestProgressDisplayCountsQueuedImages(t *testing.T) {
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	var buf bytes.Buffer
	p := NewProgressDisplayTo(&buf, "cat", 3, false)
	for i := 1; i <= 3; i++ {
		p.OnSearch(i, 3, "", errors.New("status 429"))
	}

	_, queued, _, _ := p.Counts()
	assert.Equal(t, 0, queued)
	out := buf.String()
	assert.Contains(t, out, "[────────────────────] Images Scraped: 0/3 • searched 3/3")
	assert.NotContains(t, out, "Images Scraped: 3/3")
}

func TestProgressDisplayVerbose(t *testing.T) {
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	var buf bytes.Buffer
	p := NewProgressDisplayTo(&buf, "cat", 1, true)
	p.OnDownload(downloader.DownloadResult{Success: true, Path: "cat/photo.png", Format: "png", Size: 10})
	p.OnDownload(downloader.DownloadResult{Job: downloader.DownloadJob{URL: "https://x/y.jpg"}, Error: errors.New("404")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"✓ cat/photo.png • png • 10 B", "✗ https://x/y.jpg - 404"}, lines)
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	s := &recordingSender{}
	n := NewNotifierWithSender(s)
	n.SendSuccess("imgscraper", "3 images saved")
	n.SendError("imgscraper", "no working proxies")

	assert.Equal(t, []string{"imgscraper", "imgscraper"}, s.titles)
	assert.Contains(t, buf.String(), "imgscraper: 3 images saved")

	// Disabled notifier only prints
	NewNotifier(false).SendSuccess("t", "m")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "500 B", FormatBytes(500))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "5.0 GB", FormatBytes(5*1024*1024*1024))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}
