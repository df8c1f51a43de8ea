package logger

import (
	"time"
)

// LogRequest logs the outcome of an HTTP request; status 0 means the request
// never produced a response
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := Fields{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.WarnWithFields("HTTP request failed", fields)
	}
}

// LogDownload logs the outcome of one image download
func LogDownload(l Logger, url, path string, err error) {
	fields := Fields{"url": url}
	if err != nil {
		l.WithError(err).ErrorWithFields("Download failed", fields)
		return
	}
	fields["path"] = path
	l.InfoWithFields("Image saved", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config Fields) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.DebugWithFields("Component stopped", Fields{
		"component": component,
		"reason":    reason,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(Fields) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) DebugWithFields(string, Fields) {}
func (nopLogger) InfoWithFields(string, Fields) {}
func (nopLogger) WarnWithFields(string, Fields) {}
func (nopLogger) ErrorWithFields(string, Fields) {}
