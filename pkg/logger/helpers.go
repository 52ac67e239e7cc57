package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// orGlobal returns log, or the process-wide logger when log is nil
func orGlobal(log Logger) Logger {
	if log == nil {
		return GetLogger()
	}
	return log
}

// LogQuery records one search call against the photo API
func LogQuery(log Logger, bbox string, page, pages, total int, duration float64) {
	orGlobal(log).WithFields(map[string]interface{}{
		"bbox":        bbox,
		"page":        page,
		"pages":       pages,
		"total":       total,
		"duration_ms": duration,
	}).Debug("Search page fetched")
}

// LogSplit records a partitioning decision for a region
func LogSplit(log Logger, kind, bbox string, pages int) {
	orGlobal(log).WithFields(map[string]interface{}{
		"split": kind,
		"bbox":  bbox,
		"pages": pages,
	}).Debug("Region subdivided")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfter int) {
	orGlobal(log).WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogHarvestProgress logs cumulative record counts against the announced total
func LogHarvestProgress(log Logger, collected, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(collected) / float64(total) * 100
	}

	orGlobal(log).WithFields(map[string]interface{}{
		"collected":  collected,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Harvest progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := orGlobal(log).WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	orGlobal(log).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
