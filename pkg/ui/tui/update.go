package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ProxiesMsg reports the proxy validation outcome
type ProxiesMsg struct {
	Candidates int
	Working    int
}

// SearchMsg reports one finished search iteration
type SearchMsg struct {
	Done     int
	Total    int
	ImageURL string
	Err      error
}

// DownloadMsg reports one finished download
type DownloadMsg struct {
	Item DownloadItem
}

// PhaseMsg moves the run to another stage
type PhaseMsg struct {
	Phase Phase
}

// DoneMsg ends the run with a one-line summary
type DoneMsg struct {
	Summary string
	Err     error
}

// LogMsg adds a line to the log panel
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg refreshes elapsed time
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, msg.Width/2-20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.phase == PhaseDone {
			return m, nil
		}
		return m, tickCmd()

	case ProxiesMsg:
		m.candidates = msg.Candidates
		m.working = msg.Working
		level := "INFO"
		if msg.Working == 0 {
			level = "ERROR"
		}
		m.addLog(level, fmt.Sprintf("%d of %d proxies working", msg.Working, msg.Candidates))
		return m, nil

	case SearchMsg:
		if m.phase < PhaseSearching {
			m.phase = PhaseSearching
		}
		m.searched = msg.Done
		m.total = msg.Total
		switch {
		case msg.Err != nil:
			m.failed++
			m.addLog("WARN", "Search failed: "+msg.Err.Error())
		case msg.ImageURL == "":
			m.noImage++
		default:
			m.queued++
			m.addLog("INFO", "Queued "+msg.ImageURL)
		}
		return m, nil

	case DownloadMsg:
		m.addRecent(msg.Item)
		if msg.Item.Success {
			m.saved++
			m.bytes += int64(msg.Item.Size)
			m.addLog("SUCCESS", "Saved "+msg.Item.Path)
		} else {
			m.dlFailed++
			m.addLog("ERROR", fmt.Sprintf("Download failed: %s - %v", msg.Item.URL, msg.Item.Err))
		}
		return m, nil

	case PhaseMsg:
		if msg.Phase > m.phase {
			m.phase = msg.Phase
		}
		return m, nil

	case DoneMsg:
		m.phase = PhaseDone
		m.finishedAt = time.Now()
		m.summary = msg.Summary
		if msg.Err != nil {
			m.addLog("ERROR", msg.Err.Error())
		} else if msg.Summary != "" {
			m.addLog("SUCCESS", msg.Summary)
		}
		return m, nil

	case LogMsg:
		m.addLog(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if m.phase != PhaseDone && m.onQuit != nil {
			m.onQuit()
		}
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logs = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
