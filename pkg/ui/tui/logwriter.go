package tui

import (
	"encoding/json"
	"strings"
	"sync"
)

// maxPendingLogs bounds the entries kept before a sink is attached
const maxPendingLogs = 50

// LogSink receives one log line at a time
type LogSink interface {
	Log(level, message string)
}

// LogWriter is an io.Writer for a JSON logger that forwards every entry to
// the log panel. Entries written before Attach are held and replayed.
type LogWriter struct {
	mu      sync.Mutex
	sink    LogSink
	pending []LogMsg
}

// NewLogWriter creates a writer with no sink attached
func NewLogWriter() *LogWriter {
	return &LogWriter{}
}

// Attach sets the sink and flushes held entries to it
func (w *LogWriter) Attach(sink LogSink) {
	w.mu.Lock()
	w.sink = sink
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, e := range pending {
		sink.Log(e.Level, e.Message)
	}
}

// Write takes one JSON entry per call. Lines that are not JSON are
// forwarded as they are.
func (w *LogWriter) Write(p []byte) (int, error) {
	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := LogMsg{Level: "INFO", Message: strings.TrimSpace(string(p))}
	if err := json.Unmarshal(p, &entry); err == nil {
		msg.Level = strings.ToUpper(entry.Level)
		msg.Message = entry.Message
		if entry.Error != "" {
			msg.Message += ": " + entry.Error
		}
	}

	w.mu.Lock()
	sink := w.sink
	if sink == nil {
		w.pending = append(w.pending, msg)
		if len(w.pending) > maxPendingLogs {
			w.pending = w.pending[len(w.pending)-maxPendingLogs:]
		}
	}
	w.mu.Unlock()

	if sink != nil {
		sink.Log(msg.Level, msg.Message)
	}
	return len(p), nil
}
