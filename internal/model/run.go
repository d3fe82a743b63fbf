package model

import "time"

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusOK      RunStatus = "ok"
	// RunStatusPartial means at least one source failed while the run
	// as a whole completed. The process still exits zero.
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// SourceStatus is the per-source outcome within a run.
type SourceStatus string

const (
	SourceOK      SourceStatus = "ok"
	SourceFailed  SourceStatus = "failed"
	SourceSkipped SourceStatus = "skipped"
)

// SourceResult summarizes one source's collection within a run.
type SourceResult struct {
	Source    string       `json:"source"`
	Status    SourceStatus `json:"status"`
	Collected int          `json:"collected"`
	New       int          `json:"new"`
	Invalid   int          `json:"invalid"`
	Error     string       `json:"error,omitempty"`
	Duration  int64        `json:"duration_ms"`
}

// RunSummary is the user-visible outcome of a full pipeline run.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Status         RunStatus      `json:"status"`
	Sources        []SourceResult `json:"sources"`
	FailedSources  []string       `json:"failed_sources,omitempty"`
	FailedJudges   []string       `json:"failed_judges,omitempty"`
	TotalCollected int            `json:"total_collected"`
	TotalNew       int            `json:"total_new"`
	TotalRelevant  int            `json:"total_relevant"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Run is a stored pipeline run for the history store.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
