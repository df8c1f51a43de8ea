package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
 ___ __  __  ___ ___  ___ ___    _   ___ ___ ___
|_ _|  \/  |/ __/ __|/ __| _ \  /_\ | _ \ __| _ \
 | || |\/| | (_ \__ \ (__|   / / _ \|  _/ _||   /
|___|_|  |_|\___|___/\___|_|_\/_/ \_\_| |___|_|_\`

// View renders the entire TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusPanel(width),
		m.renderDownloadsPanel(width),
	)
	right := m.renderLogsPanel(width)

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderStatusPanel shows the phase, proxies and search progress
func (m *Model) renderStatusPanel(width int) string {
	title := titleStyle.Render(" SCRAPE STATUS ")

	phase := statsValueStyle.Render(m.phase.String())
	if m.phase != PhaseDone {
		phase = m.spinner.View() + " " + phase
	}

	var proxies string
	switch {
	case !m.useProxies:
		proxies = dimStyle.Render("disabled")
	case m.phase == PhaseProxies:
		proxies = warningStyle.Render("checking...")
	default:
		proxies = proxyStyle(m.working, m.candidates).
			Render(fmt.Sprintf("%d/%d working", m.working, m.candidates))
	}

	lines := []string{
		label("Search Key:", statsValueStyle.Render(m.searchKey)),
		label("Phase:", phase),
		label("Proxies:", proxies),
		label("Images Scraped:", statsValueStyle.Render(fmt.Sprintf("%d/%d", m.queued, m.total))) + "  " +
			label("Searched:", statsValueStyle.Render(fmt.Sprintf("%d/%d", m.searched, m.total))),
		m.bar.ViewAs(m.Percent()),
		label("Queued:", successStyle.Render(fmt.Sprint(m.queued))) + "  " +
			label("No image:", statsValueStyle.Render(fmt.Sprint(m.noImage))) + "  " +
			label("Failed:", errorStyle.Render(fmt.Sprint(m.failed))),
		label("Elapsed:", statsValueStyle.Render(formatDuration(m.elapsed()))),
	}
	if m.summary != "" {
		lines = append(lines, successStyle.Render(m.summary))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

// renderDownloadsPanel lists the most recent downloads
func (m *Model) renderDownloadsPanel(width int) string {
	title := titleStyle.Render(" DOWNLOADS ")

	header := label("Saved:", successStyle.Render(fmt.Sprint(m.saved))) + "  " +
		label("Failed:", errorStyle.Render(fmt.Sprint(m.dlFailed))) + "  " +
		label("Size:", statsValueStyle.Render(FormatBytes(m.bytes)))

	items := []string{header, ""}
	if len(m.recent) == 0 {
		items = append(items, dimStyle.Render("No downloads yet"))
	}
	for _, d := range m.recent {
		if d.Success {
			items = append(items, successStyle.Render("✓ ")+truncate(d.Path, width-12)+
				dimStyle.Render(" "+FormatBytes(int64(d.Size))))
		} else {
			items = append(items, errorStyle.Render("✗ ")+truncate(d.URL, width-8))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n")),
	)
}

// renderLogsPanel shows the last log lines
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logs) - 15
	if start < 0 {
		start = 0
	}

	var lines []string
	for _, l := range m.logs[start:] {
		level := lipgloss.NewStyle().Foreground(levelColor(l.Level)).Bold(true).
			Render(fmt.Sprintf("[%-7s]", l.Level))
		lines = append(lines, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(l.Time.Format("15:04:05")),
			level,
			truncate(l.Message, width-25)))
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/esc    - Stop the run and quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  The bar tracks queued images. Each search iteration queues at most one
  image; downloads finish in the background after the last search.
`
	return panelStyle.Width(m.width).Render(help)
}

func label(name, value string) string {
	return statsLabelStyle.Render(name) + " " + value
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// FormatBytes formats bytes to human readable format
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

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
