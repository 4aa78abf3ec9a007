// Package events publishes notifications about finished batch jobs.
package events

import (
	"context"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// TopicJobCompleted is the default topic for job completion events.
const TopicJobCompleted = "batch_job_completed"

// JobCompleted is the payload published when a batch job is finalized.
type JobCompleted struct {
	JobID            string          `json:"jobId"`
	JobType          string          `json:"jobType"`
	Status           model.JobStatus `json:"status"`
	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          time.Time       `json:"endedAt"`
	DurationMS       int64           `json:"durationMs"`
	TickersProcessed int             `json:"tickersProcessed"`
	TickersSucceeded int             `json:"tickersSucceeded"`
	TickersFailed    int             `json:"tickersFailed"`
	ErrorSummary     []string        `json:"errorSummary"`
}

// NewJobCompleted builds the event for a finalized job record.
func NewJobCompleted(job model.BatchJobRecord) JobCompleted {
	ev := JobCompleted{
		JobID:            job.JobID,
		JobType:          job.JobType,
		Status:           job.Status,
		StartedAt:        job.StartedAt,
		DurationMS:       job.Duration().Milliseconds(),
		TickersProcessed: job.TickersProcessed,
		TickersSucceeded: job.TickersSucceeded,
		TickersFailed:    job.TickersFailed,
		ErrorSummary:     job.ErrorSummary,
	}
	if job.EndedAt != nil {
		ev.EndedAt = *job.EndedAt
	}
	return ev
}

// Publisher delivers job completion events.
type Publisher interface {
	PublishJobCompleted(ctx context.Context, job model.BatchJobRecord) error
	Close() error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

// PublishJobCompleted implements Publisher.
func (NoopPublisher) PublishJobCompleted(context.Context, model.BatchJobRecord) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
