package driven

import "time"

// Metrics receives operational measurements from core services.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// SearchCompleted observes one search.
	SearchCompleted(entities string, d time.Duration, results int, err error)

	// AutocompleteSourceFailed counts a suggestion source that was skipped.
	AutocompleteSourceFailed(source string)

	// DocumentsSynced counts documents written or rejected by a sync pass.
	DocumentsSynced(mode, entity string, synced, failed int)

	// SyncPassCompleted observes one sync pass.
	SyncPassCompleted(mode string, d time.Duration, err error)

	// QueryLogDropped counts query log entries dropped on a full queue.
	QueryLogDropped(kind string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

// SearchCompleted implements Metrics.
func (NopMetrics) SearchCompleted(string, time.Duration, int, error) {}

// AutocompleteSourceFailed implements Metrics.
func (NopMetrics) AutocompleteSourceFailed(string) {}

// DocumentsSynced implements Metrics.
func (NopMetrics) DocumentsSynced(string, string, int, int) {}

// SyncPassCompleted implements Metrics.
func (NopMetrics) SyncPassCompleted(string, time.Duration, error) {}

// QueryLogDropped implements Metrics.
func (NopMetrics) QueryLogDropped(string) {}
