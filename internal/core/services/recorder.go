package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure QueryLogRecorder implements the interface.
var _ driving.QueryLogRecorder = (*QueryLogRecorder)(nil)

// RecorderConfig holds query log recorder settings.
type RecorderConfig struct {
	// QueueSize bounds the number of pending entries.
	QueueSize int

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder settings.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		QueueSize:    256,
		WriteTimeout: 2 * time.Second,
	}
}

// logEntry is either a query record or a click.
type logEntry struct {
	record  *domain.SearchQueryRecord
	queryID string
	click   domain.ClickedResult
}

// QueryLogRecorder writes the query log from a single background worker.
// Callers never block: a full queue drops the entry.
type QueryLogRecorder struct {
	store   driven.QueryLogStore
	metrics driven.Metrics
	config  RecorderConfig
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan logEntry
	done   chan struct{}
}

// NewQueryLogRecorder creates a recorder and starts its worker.
func NewQueryLogRecorder(store driven.QueryLogStore, config RecorderConfig) *QueryLogRecorder {
	defaults := DefaultRecorderConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	r := &QueryLogRecorder{
		store:   store,
		metrics: driven.NopMetrics{},
		config:  config,
		now:     time.Now,
		queue:   make(chan logEntry, config.QueueSize),
		done:    make(chan struct{}),
	}
	go r.work()
	return r
}

// SetMetrics sets the metrics sink.
func (r *QueryLogRecorder) SetMetrics(m driven.Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// Record enqueues a query record and returns its id.
func (r *QueryLogRecorder) Record(record domain.SearchQueryRecord) string {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SearchedAt.IsZero() {
		record.SearchedAt = r.now()
	}
	r.enqueue(logEntry{record: &record}, "query")
	return record.ID
}

// RecordClick enqueues a click on a logged query.
func (r *QueryLogRecorder) RecordClick(queryID string, click domain.ClickedResult) {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = r.now()
	}
	r.enqueue(logEntry{queryID: queryID, click: click}, "click")
}

func (r *QueryLogRecorder) enqueue(e logEntry, kind string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		logger.Debug("Query log closed, dropping %s", kind)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.metrics.QueryLogDropped(kind)
		logger.Warn("Query log queue full, dropping %s", kind)
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (r *QueryLogRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// work drains the queue. Store failures are logged and swallowed.
func (r *QueryLogRecorder) work() {
	defer close(r.done)

	for e := range r.queue {
		if r.store == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		var err error
		if e.record != nil {
			err = r.store.Save(ctx, e.record)
		} else {
			err = r.store.AppendClick(ctx, e.queryID, e.click)
		}
		cancel()
		if err != nil {
			logger.Warn("Query log write failed: %v", err)
		}
	}
}
