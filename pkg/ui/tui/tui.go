package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"imgscraper/internal/downloader"
)

// TUI runs the full-screen view of a scrape and receives its progress
// events. It satisfies scraper.Observer.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI. cancel is called if the user quits early.
func NewTUI(searchKey string, total int, useProxies bool, cancel func()) *TUI {
	model := NewModel(searchKey, total, useProxies, cancel)
	return &TUI{
		program: tea.NewProgram(model, tea.WithAltScreen()),
		model:   model,
	}
}

// Start blocks until the program exits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// OnProxies forwards the proxy validation outcome
func (t *TUI) OnProxies(candidates, working int) {
	t.Send(ProxiesMsg{Candidates: candidates, Working: working})
}

// OnSearch forwards one search iteration; the last one starts the drain phase
func (t *TUI) OnSearch(done, total int, imageURL string, err error) {
	t.Send(SearchMsg{Done: done, Total: total, ImageURL: imageURL, Err: err})
	if done >= total {
		t.Send(PhaseMsg{Phase: PhaseDraining})
	}
}

// OnDownload forwards one download result
func (t *TUI) OnDownload(r downloader.DownloadResult) {
	t.Send(DownloadMsg{Item: DownloadItem{
		URL:     r.Job.URL,
		Path:    r.Path,
		Format:  r.Format,
		Size:    r.Size,
		Success: r.Success,
		Err:     r.Error,
	}})
}

// Done marks the run finished
func (t *TUI) Done(summary string, err error) {
	t.Send(DoneMsg{Summary: summary, Err: err})
}

// Log adds a line to the log panel
func (t *TUI) Log(level, message string) {
	t.Send(LogMsg{Level: level, Message: message})
}
