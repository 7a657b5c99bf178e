package logger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimit logs a rate limiting event for an endpoint category.
func LogRateLimit(category string, wait time.Duration) {
	GetLogger().WithFields(map[string]interface{}{
		"category": category,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, waiting for reset")
}

// LogCrawlProgress logs listing/enrichment progress.
func LogCrawlProgress(phase string, processed, total int) {
	fields := map[string]interface{}{
		"phase":     phase,
		"processed": processed,
	}
	if total > 0 {
		fields["total"] = total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(processed)/float64(total)*100)
	}
	GetLogger().WithFields(fields).Info("Crawl progress")
}

// NewNopLogger creates a no-operation logger for testing.
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing.
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
