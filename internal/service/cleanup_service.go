package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
)

// CleanupResult reports how many rows a cleanup run removed.
type CleanupResult struct {
	JobsDeleted    int64 `json:"jobsDeleted"`
	HistoryDeleted int64 `json:"historyDeleted"`
}

// CleanupService prunes old batch job records and price history.
type CleanupService struct {
	jobRepo   *repository.BatchJobRepository
	priceRepo *repository.PriceCacheRepository
	cfg       config.ScheduleConfig
	logger    *logging.Logger
	now       func() time.Time
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(
	jobRepo *repository.BatchJobRepository,
	priceRepo *repository.PriceCacheRepository,
	cfg config.ScheduleConfig,
	logger *logging.Logger,
) *CleanupService {
	return &CleanupService{
		jobRepo:   jobRepo,
		priceRepo: priceRepo,
		cfg:       cfg,
		logger:    logger.Component("cleanup"),
		now:       time.Now,
	}
}

// Cleanup deletes finished jobs older than the job retention and price history
// older than the history retention. A retention of zero or less keeps everything.
func (s *CleanupService) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	now := s.now().UTC()

	if s.cfg.JobRetentionDays > 0 {
		n, err := s.jobRepo.DeleteJobsBefore(ctx, now.AddDate(0, 0, -s.cfg.JobRetentionDays))
		if err != nil {
			return res, fmt.Errorf("failed to delete old batch jobs: %w", err)
		}
		res.JobsDeleted = n
	}

	if s.cfg.HistoryRetentionDays > 0 {
		n, err := s.priceRepo.DeleteHistoryBefore(ctx, now.AddDate(0, 0, -s.cfg.HistoryRetentionDays))
		if err != nil {
			return res, fmt.Errorf("failed to delete old price history: %w", err)
		}
		res.HistoryDeleted = n
	}

	s.logger.Info().
		Int64("jobs_deleted", res.JobsDeleted).
		Int64("history_deleted", res.HistoryDeleted).
		Msg("cleanup finished")
	return res, nil
}
