package model

import "time"

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

// Job statuses. RUNNING is only ever seen before finalization.
const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job types written by the reconciler.
const (
	JobTypeDaily       = "daily_refresh"
	JobTypeCatchUp     = "catch_up_refresh"
	JobTypeManual      = "manual_refresh"
	JobTypeUserRefresh = "user_refresh"
)

// TickerOutcome summarises how one ticker fared during a batch job.
type TickerOutcome struct {
	Ticker   string    `json:"ticker"`
	Attempts int       `json:"attempts"`
	Tier     QuoteTier `json:"tier,omitempty"`
	Resolved bool      `json:"resolved"`
	Skipped  bool      `json:"skipped,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BatchJobRecord is the persisted record of one reconciliation run.
type BatchJobRecord struct {
	JobID            string          `json:"jobId"`
	JobType          string          `json:"jobType"`
	Status           JobStatus       `json:"status"`
	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
	TickersProcessed int             `json:"tickersProcessed"`
	TickersSucceeded int             `json:"tickersSucceeded"`
	TickersFailed    int             `json:"tickersFailed"`
	ErrorSummary     []string        `json:"errorSummary"`
	Details          []TickerOutcome `json:"details,omitempty"`
}

// Duration returns the elapsed run time, or zero while the job is still running.
func (r BatchJobRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
