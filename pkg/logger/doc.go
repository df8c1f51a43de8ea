// Package logger provides structured logging for the image scraper.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed a capturing TestLogger or a no-op logger in tests.
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//	log := logger.GetLogger().WithField("component", "worker")
//	log.InfoWithFields("Image saved", logger.Fields{"path": path})
//
// Console output is colourised unless NoColor is set. When File is set,
// JSON lines are appended to that file as well.
package logger
