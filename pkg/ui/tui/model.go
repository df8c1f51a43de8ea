package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Phase is the stage a scrape run is in
type Phase int

const (
	PhaseProxies Phase = iota
	PhaseSearching
	PhaseDraining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseProxies:
		return "validating proxies"
	case PhaseSearching:
		return "searching"
	case PhaseDraining:
		return "finishing downloads"
	default:
		return "done"
	}
}

// DownloadItem is one finished download shown in the recent list
type DownloadItem struct {
	URL     string
	Path    string
	Format  string
	Size    int
	Success bool
	Err     error
}

// LogEntry is a line in the log panel
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the bubbletea model of a scrape run
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	searchKey string
	phase     Phase

	candidates int
	working    int
	useProxies bool

	total    int
	searched int
	queued   int
	noImage  int
	failed   int

	recent     []DownloadItem
	maxRecent  int
	saved      int
	dlFailed   int
	bytes      int64
	summary    string
	startTime  time.Time
	finishedAt time.Time

	logs    []LogEntry
	maxLogs int

	width    int
	height   int
	showHelp bool
	quitting bool
	onQuit   func()
}

// NewModel creates a model for total search iterations. onQuit, if not
// nil, is called when the user quits before the run is done.
func NewModel(searchKey string, total int, useProxies bool, onQuit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statsLabelStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	m := &Model{
		spinner:    s,
		bar:        bar,
		searchKey:  searchKey,
		total:      total,
		useProxies: useProxies,
		maxRecent:  8,
		maxLogs:    50,
		startTime:  time.Now(),
		onQuit:     onQuit,
	}
	if !useProxies {
		m.phase = PhaseSearching
	}
	return m
}

// Init starts the spinner and the elapsed clock
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Percent returns the fraction of the target images queued so far
func (m *Model) Percent() float64 {
	if m.total <= 0 {
		return 0
	}
	p := float64(m.queued) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p
}

// Phase returns the current stage
func (m *Model) Phase() Phase {
	return m.phase
}

func (m *Model) addLog(level, message string) {
	m.logs = append(m.logs, LogEntry{Time: time.Now(), Level: level, Message: message})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

func (m *Model) addRecent(item DownloadItem) {
	m.recent = append(m.recent, item)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

func (m *Model) elapsed() time.Duration {
	if !m.finishedAt.IsZero() {
		return m.finishedAt.Sub(m.startTime)
	}
	return time.Since(m.startTime)
}
