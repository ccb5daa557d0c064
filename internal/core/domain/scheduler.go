package domain

import "time"

// SchedulerState is the lifecycle state of the sync scheduler.
type SchedulerState string

// Scheduler states.
const (
	SchedulerStopped      SchedulerState = "stopped"
	SchedulerInitializing SchedulerState = "initializing"
	SchedulerReady        SchedulerState = "ready"
	SchedulerRunning      SchedulerState = "running"
)

// SchedulerStatus is a point-in-time view of the sync scheduler.
type SchedulerStatus struct {
	Running  bool           `json:"running"`
	State    SchedulerState `json:"state"`
	LastSync time.Time      `json:"lastSync"`
	Interval time.Duration  `json:"interval"`

	// LastResult is the most recent pass, nil before the first.
	LastResult *TaskResult `json:"lastResult,omitempty"`
}

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string `json:"taskId"`

	// Mode is the kind of pass that actually ran. An incremental task whose
	// watermark is too old runs in full mode.
	Mode SyncMode `json:"mode,omitempty"`

	// StartedAt is when the task started.
	StartedAt time.Time `json:"startedAt"`

	// EndedAt is when the task completed.
	EndedAt time.Time `json:"endedAt"`

	// Success indicates whether the task completed without error.
	Success bool `json:"success"`

	// Error contains the error message if Success is false.
	Error string `json:"error,omitempty"`

	// ItemsProcessed is the number of documents synced.
	ItemsProcessed int `json:"itemsProcessed"`

	// ItemsFailed is the number of documents that failed.
	ItemsFailed int `json:"itemsFailed"`

	// Since is the start of an incremental window; zero for full passes.
	Since time.Time `json:"since,omitempty"`

	// Watermark is the engine watermark after the pass.
	Watermark time.Time `json:"watermark,omitempty"`
}

// SchedulerConfig holds sync scheduler configuration.
type SchedulerConfig struct {
	// Interval between incremental passes.
	Interval time.Duration

	// HistoryLimit is the number of task results kept.
	HistoryLimit int

	// InitialFullSync runs a full pass during Initialize.
	InitialFullSync bool
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:        5 * time.Minute,
		HistoryLimit:    100,
		InitialFullSync: true,
	}
}

// Task IDs for scheduled passes.
const (
	TaskIDFullSync        = "full-sync"
	TaskIDIncrementalSync = "incremental-sync"
)
