package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imgscraper/internal/downloader"
)

// ProgressDisplay renders a single-line scrape progress bar. It receives
// events from the scrape loop and the download workers.
type ProgressDisplay struct {
	mu        sync.Mutex
	w         io.Writer
	searchKey string
	total     int
	searched  int
	queued    int
	saved     int
	failed    int
	bytes     int64
	startTime time.Time
	verbose   bool
}

// NewProgressDisplay creates a display for total search iterations. With
// verbose set every download is printed on its own line.
func NewProgressDisplay(searchKey string, total int, verbose bool) *ProgressDisplay {
	return NewProgressDisplayTo(writer(false), searchKey, total, verbose)
}

// NewProgressDisplayTo is NewProgressDisplay writing to w
func NewProgressDisplayTo(w io.Writer, searchKey string, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:         w,
		searchKey: searchKey,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// OnProxies reports the proxy validation outcome
func (p *ProgressDisplay) OnProxies(candidates, working int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Green(fmt.Sprintf("%d/%d working", working, candidates))
	if working == 0 {
		status = Red(fmt.Sprintf("%d/%d working", working, candidates))
	}
	fmt.Fprintf(p.w, "%s %s\n", Magenta("[PROXIES]"), status)
}

// OnSearch advances the bar by one iteration
func (p *ProgressDisplay) OnSearch(done, total int, imageURL string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.searched = done
	p.total = total
	if err == nil && imageURL != "" {
		p.queued++
	}
	p.printProgress()
}

// OnDownload records a finished download
func (p *ProgressDisplay) OnDownload(result downloader.DownloadResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if result.Success {
		p.saved++
		p.bytes += int64(result.Size)
	} else {
		p.failed++
	}

	if p.verbose {
		p.printDownload(result)
		return
	}
	p.printProgress()
}

// printProgress must be called with p.mu held. The bar counts queued
// images, so iterations without one leave it short of full.
func (p *ProgressDisplay) printProgress() {
	const barWidth = 20
	filled := 0
	if p.total > 0 {
		filled = p.queued * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] Images Scraped: %d/%d • searched %d/%d • saved %d • %s",
		Cyan(p.searchKey),
		bar,
		p.queued,
		p.total,
		p.searched,
		p.total,
		p.saved,
		FormatBytes(p.bytes),
	)
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.failed))
	}

	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// printDownload must be called with p.mu held
func (p *ProgressDisplay) printDownload(result downloader.DownloadResult) {
	if result.Success {
		fmt.Fprintf(p.w, "\n%s %s • %s • %s", Green("✓"), result.Path, result.Format, FormatBytes(int64(result.Size)))
		return
	}
	fmt.Fprintf(p.w, "\n%s %s - %v", Red("✗"), result.Job.URL, result.Error)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(outputDir string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.w, "\n\n%s Saved %d of %d queued images for %q\n",
		Green("✓"), p.saved, p.queued, p.searchKey)
	fmt.Fprintf(p.w, "  %s %s in %s → %s\n",
		Dim("•"), FormatBytes(p.bytes), FormatDuration(elapsed), outputDir)
	if p.failed > 0 {
		fmt.Fprintf(p.w, "  %s %d downloads failed\n", Dim("•"), p.failed)
	}
}

// Counts returns searched iterations, queued, saved and failed downloads
func (p *ProgressDisplay) Counts() (searched, queued, saved, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searched, p.queued, p.saved, p.failed
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
