package domain

import "time"

// SyncMode names the kind of synchronisation pass.
type SyncMode string

// Sync modes.
const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// WatermarkKey is the SyncStateStore key of the engine's watermark.
const WatermarkKey = "search-sync"

// SyncState is the persisted watermark and outcome of the latest pass.
type SyncState struct {
	// Key identifies the state entry.
	Key string

	// Watermark is the start time of the latest completed pass.
	Watermark time.Time

	// Mode is the kind of the latest pass.
	Mode SyncMode

	// Synced and Failed count documents in the latest pass.
	Synced int
	Failed int

	// UpdatedAt is when the state was written.
	UpdatedAt time.Time
}

// EntitySyncCount is the per-entity outcome of a pass.
type EntitySyncCount struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncReport is the outcome of a synchronisation pass.
type SyncReport struct {
	Mode       SyncMode                       `json:"mode"`
	StartedAt  time.Time                      `json:"startedAt"`
	FinishedAt time.Time                      `json:"finishedAt"`
	Since      time.Time                      `json:"since,omitempty"`
	Entities   map[EntityType]EntitySyncCount `json:"entities"`
}

// NewSyncReport returns an empty report for a pass starting at startedAt.
func NewSyncReport(mode SyncMode, startedAt time.Time) *SyncReport {
	return &SyncReport{
		Mode:      mode,
		StartedAt: startedAt,
		Entities:  make(map[EntityType]EntitySyncCount),
	}
}

// Add accumulates counts for entity.
func (r *SyncReport) Add(entity EntityType, synced, failed int) {
	c := r.Entities[entity]
	c.Synced += synced
	c.Failed += failed
	r.Entities[entity] = c
}

// Synced returns the total number of documents synced.
func (r *SyncReport) Synced() int {
	n := 0
	for _, c := range r.Entities {
		n += c.Synced
	}
	return n
}

// Failed returns the total number of documents that failed.
func (r *SyncReport) Failed() int {
	n := 0
	for _, c := range r.Entities {
		n += c.Failed
	}
	return n
}

// Counts returns synced documents keyed by entity name.
func (r *SyncReport) Counts() map[string]int {
	out := make(map[string]int, len(r.Entities))
	for e, c := range r.Entities {
		out[e.String()] = c.Synced
	}
	return out
}
