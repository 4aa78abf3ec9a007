package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// BatchJobRepository provides data access methods for the batch_job_logs table.
type BatchJobRepository struct {
	db *sql.DB
}

// NewBatchJobRepository creates a new BatchJobRepository with the provided database connection.
func NewBatchJobRepository(db *sql.DB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

func (r *BatchJobRepository) getQuerier() querier {
	return r.db
}

// InsertJob records a new job in RUNNING state.
func (r *BatchJobRepository) InsertJob(ctx context.Context, job model.BatchJobRecord) error {
	_, err := r.getQuerier().ExecContext(ctx, `
		INSERT INTO batch_job_logs (job_id, job_type, status, started_at)
		VALUES (?, ?, ?, ?)
	`, job.JobID, job.JobType, string(model.JobStatusRunning), FormatTimestamp(job.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert batch job: %w", err)
	}
	return nil
}

// FinalizeJob writes the terminal state of a RUNNING job.
// A job can only be finalized once; finalizing a job that is not RUNNING returns apperrors.ErrBatchJobNotFound.
func (r *BatchJobRepository) FinalizeJob(ctx context.Context, job model.BatchJobRecord) error {
	if job.EndedAt == nil {
		return fmt.Errorf("failed to finalize batch job %s: missing end time", job.JobID)
	}

	summary := job.ErrorSummary
	if summary == nil {
		summary = []string{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode error summary: %w", err)
	}
	details := job.Details
	if details == nil {
		details = []model.TickerOutcome{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode job details: %w", err)
	}

	res, err := r.getQuerier().ExecContext(ctx, `
		UPDATE batch_job_logs
		SET status = ?, ended_at = ?, tickers_processed = ?, tickers_succeeded = ?,
			tickers_failed = ?, error_summary = ?, details = ?
		WHERE job_id = ? AND status = ?
	`,
		string(job.Status),
		FormatTimestamp(*job.EndedAt),
		job.TickersProcessed,
		job.TickersSucceeded,
		job.TickersFailed,
		string(summaryJSON),
		string(detailsJSON),
		job.JobID,
		string(model.JobStatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize batch job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize batch job: %w", err)
	}
	if n == 0 {
		return apperrors.ErrBatchJobNotFound
	}
	return nil
}

const batchJobColumns = `job_id, job_type, status, started_at, ended_at, tickers_processed,
	tickers_succeeded, tickers_failed, error_summary, details`

// GetJob returns a single job by ID.
func (r *BatchJobRepository) GetJob(ctx context.Context, jobID string) (model.BatchJobRecord, error) {
	row := r.getQuerier().QueryRowContext(ctx,
		`SELECT `+batchJobColumns+` FROM batch_job_logs WHERE job_id = ?`, jobID)

	job, err := scanBatchJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BatchJobRecord{}, apperrors.ErrBatchJobNotFound
		}
		return model.BatchJobRecord{}, err
	}
	return job, nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *BatchJobRepository) ListJobs(ctx context.Context, limit int) ([]model.BatchJobRecord, error) {
	rows, err := r.getQuerier().QueryContext(ctx,
		`SELECT `+batchJobColumns+` FROM batch_job_logs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch_job_logs: %w", err)
	}
	defer rows.Close()

	jobs := []model.BatchJobRecord{}
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch_job_logs: %w", err)
	}
	return jobs, nil
}

// DeleteJobsBefore removes finished jobs that started before cutoff.
func (r *BatchJobRepository) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM batch_job_logs WHERE started_at < ? AND status != ?`,
		FormatTimestamp(cutoff), string(model.JobStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch_job_logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted batch_job_logs rows: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatchJob(row rowScanner) (model.BatchJobRecord, error) {
	var job model.BatchJobRecord
	var status, startedAt, summaryJSON, detailsJSON string
	var endedAt sql.NullString

	err := row.Scan(
		&job.JobID,
		&job.JobType,
		&status,
		&startedAt,
		&endedAt,
		&job.TickersProcessed,
		&job.TickersSucceeded,
		&job.TickersFailed,
		&summaryJSON,
		&detailsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job, err
		}
		return job, fmt.Errorf("failed to scan batch_job_logs results: %w", err)
	}
	job.Status = model.JobStatus(status)

	job.StartedAt, err = ParseTime(startedAt)
	if err != nil {
		return job, err
	}
	job.EndedAt, err = parseNullTime(endedAt)
	if err != nil {
		return job, err
	}

	if err := json.Unmarshal([]byte(summaryJSON), &job.ErrorSummary); err != nil {
		return job, fmt.Errorf("failed to decode error summary: %w", err)
	}
	if err := json.Unmarshal([]byte(detailsJSON), &job.Details); err != nil {
		return job, fmt.Errorf("failed to decode job details: %w", err)
	}
	if job.ErrorSummary == nil {
		job.ErrorSummary = []string{}
	}
	return job, nil
}
