package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/events"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// finalizeTimeout bounds the bookkeeping done after the job context may have expired.
const finalizeTimeout = 30 * time.Second

const defaultJobListLimit = 20

// JobStore persists batch job records. It is implemented by repository.BatchJobRepository.
type JobStore interface {
	InsertJob(ctx context.Context, job model.BatchJobRecord) error
	FinalizeJob(ctx context.Context, job model.BatchJobRecord) error
	ListJobs(ctx context.Context, limit int) ([]model.BatchJobRecord, error)
	GetJob(ctx context.Context, jobID string) (model.BatchJobRecord, error)
}

// Scope selects whose holdings a reconcile run covers.
type Scope struct {
	AllUsers bool
	UserID   string
}

// AllUsersScope covers every user's holdings.
func AllUsersScope() Scope {
	return Scope{AllUsers: true}
}

// SingleUserScope covers one user's holdings.
func SingleUserScope(userID string) Scope {
	return Scope{UserID: userID}
}

func (s Scope) validate() error {
	if s.AllUsers == (s.UserID != "") {
		return apperrors.ErrInvalidScope
	}
	if !s.AllUsers {
		return validation.ValidateUserID(s.UserID)
	}
	return nil
}

// BatchReconciler refreshes prices for many tickers at once. Tickers within a batch are
// fetched concurrently, batches run one after another, and every run is recorded in batch_job_logs.
type BatchReconciler struct {
	resolver        *PriceResolver
	jobs            JobStore
	transactionRepo *repository.TransactionRepository
	priceRepo       *repository.PriceCacheRepository
	publisher       events.Publisher
	cfg             config.BatchConfig
	logger          *logging.Logger
	now             func() time.Time
}

// NewBatchReconciler creates a new BatchReconciler.
func NewBatchReconciler(
	resolver *PriceResolver,
	jobs JobStore,
	transactionRepo *repository.TransactionRepository,
	priceRepo *repository.PriceCacheRepository,
	publisher events.Publisher,
	cfg config.BatchConfig,
	logger *logging.Logger,
) *BatchReconciler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &BatchReconciler{
		resolver:        resolver,
		jobs:            jobs,
		transactionRepo: transactionRepo,
		priceRepo:       priceRepo,
		publisher:       publisher,
		cfg:             cfg,
		logger:          logger.Component("batch_reconciler"),
		now:             time.Now,
	}
}

// ReconcileStaleTickers refreshes every ticker in scope whose persisted quote is
// missing or older than hoursStale.
func (s *BatchReconciler) ReconcileStaleTickers(ctx context.Context, hoursStale int, scope Scope) (model.BatchJobRecord, error) {
	jobType := model.JobTypeManual
	if !scope.AllUsers {
		jobType = model.JobTypeUserRefresh
	}
	return s.reconcile(ctx, jobType, hoursStale, scope)
}

// RunDaily is the scheduled refresh of all users' stale tickers.
func (s *BatchReconciler) RunDaily(ctx context.Context) (model.BatchJobRecord, error) {
	return s.reconcile(ctx, model.JobTypeDaily, s.cfg.DailyStaleHours, AllUsersScope())
}

// RunCatchUp is the wider weekly sweep for tickers the daily runs left behind.
func (s *BatchReconciler) RunCatchUp(ctx context.Context) (model.BatchJobRecord, error) {
	return s.reconcile(ctx, model.JobTypeCatchUp, s.cfg.CatchUpStaleHours, AllUsersScope())
}

func (s *BatchReconciler) reconcile(ctx context.Context, jobType string, hoursStale int, scope Scope) (model.BatchJobRecord, error) {
	if hoursStale <= 0 {
		return model.BatchJobRecord{}, apperrors.ErrInvalidStaleHours
	}
	if err := scope.validate(); err != nil {
		return model.BatchJobRecord{}, err
	}

	tickers, err := s.StaleTickers(ctx, hoursStale, scope)
	if err != nil {
		return model.BatchJobRecord{}, err
	}

	s.logger.Info().
		Str("job_type", jobType).
		Int("hours_stale", hoursStale).
		Int("stale_tickers", len(tickers)).
		Msg("starting reconcile")

	return s.Run(ctx, jobType, tickers)
}

// StaleTickers returns the symbols held in scope whose persisted quote is missing
// or older than hoursStale, in ticker order.
func (s *BatchReconciler) StaleTickers(ctx context.Context, hoursStale int, scope Scope) ([]string, error) {
	holdings, err := s.transactionRepo.ListHoldings(ctx, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveTransactions, err)
	}

	symbols := make([]string, 0, len(holdings))
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		sym := pricesource.FormatSymbol(h.Ticker, h.Exchange)
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}

	quotes, err := s.priceRepo.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	threshold := s.now().Add(-time.Duration(hoursStale) * time.Hour)
	stale := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok || q.Timestamp.Before(threshold) {
			stale = append(stale, sym)
		}
	}
	return stale, nil
}

// GetBatchJobStatus returns the most recent job records, newest first.
func (s *BatchReconciler) GetBatchJobStatus(ctx context.Context, limit int) ([]model.BatchJobRecord, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	jobs, err := s.jobs.ListJobs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveJobs, err)
	}
	return jobs, nil
}

// GetJob returns a single job record.
func (s *BatchReconciler) GetJob(ctx context.Context, jobID string) (model.BatchJobRecord, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// tickerState is the running outcome of one ticker within a job.
type tickerState struct {
	outcome model.TickerOutcome
}

// Run executes one reconciliation job over tickers.
//
// A ticker that fails never aborts the job; it falls back to the persistent and
// estimated tiers once all batches are done. The returned error is non-nil only
// when the job's own bookkeeping failed, in which case the job is finalized FAILED.
func (s *BatchReconciler) Run(ctx context.Context, jobType string, tickers []string) (job model.BatchJobRecord, err error) {
	job = model.BatchJobRecord{
		JobID:        uuid.New().String(),
		JobType:      jobType,
		Status:       model.JobStatusRunning,
		StartedAt:    s.now().UTC(),
		ErrorSummary: []string{},
	}
	logger := &logging.Logger{Logger: s.logger.With().Str("job_id", job.JobID).Str("job_type", jobType).Logger()}

	if err := s.jobs.InsertJob(ctx, job); err != nil {
		return job, fmt.Errorf("%w: %w", apperrors.ErrJobBookkeeping, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("batch job panicked")
			err = fmt.Errorf("%w: panic: %v", apperrors.ErrJobBookkeeping, rec)
			job = s.finalize(ctx, job, nil, err)
		}
	}()

	order, states := s.prepare(tickers)

	jobCtx, cancel := withOptionalTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	batches := chunk(pending(order, states), s.cfg.BatchSize)
	for i, batch := range batches {
		if i > 0 && s.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(s.cfg.InterBatchDelay):
			case <-jobCtx.Done():
			}
		}
		if jobCtx.Err() != nil {
			skipped := 0
			for _, rest := range batches[i:] {
				for _, t := range rest {
					states[t].outcome.Skipped = true
					skipped++
				}
			}
			logger.Warn().Int("skipped", skipped).Msg("job timeout reached, skipping remaining batches")
			break
		}
		s.runBatch(jobCtx, batch, states, logger)
	}

	s.applyFallback(ctx, order, states, logger)

	job = s.finalize(ctx, job, s.outcomes(order, states), nil)
	if job.Status == model.JobStatusFailed {
		return job, fmt.Errorf("%w: failed to finalize job %s", apperrors.ErrJobBookkeeping, job.JobID)
	}

	logger.Info().
		Int("processed", job.TickersProcessed).
		Int("succeeded", job.TickersSucceeded).
		Int("failed", job.TickersFailed).
		Dur("duration", job.Duration()).
		Msg("batch job finished")
	return job, nil
}

// prepare deduplicates and validates tickers. Invalid tickers are recorded as failed without any attempt.
func (s *BatchReconciler) prepare(tickers []string) ([]string, map[string]*tickerState) {
	order := make([]string, 0, len(tickers))
	states := make(map[string]*tickerState, len(tickers))
	for _, raw := range tickers {
		t, err := validation.ValidateTicker(raw)
		key := t
		if err != nil {
			key = raw
		}
		if _, dup := states[key]; dup {
			continue
		}
		st := &tickerState{outcome: model.TickerOutcome{Ticker: key}}
		if err != nil {
			st.outcome.Error = err.Error()
			st.outcome.Tier = model.TierUnavailable
		}
		states[key] = st
		order = append(order, key)
	}
	return order, states
}

// runBatch fetches every ticker of the batch concurrently and retries the ones that
// failed, up to MaxRetries attempts in total with a constant delay.
func (s *BatchReconciler) runBatch(ctx context.Context, batch []string, states map[string]*tickerState, logger *logging.Logger) {
	todo := batch
	attempt := 0

	maxRetries := uint64(max(s.cfg.MaxRetries-1, 0))
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(max(s.cfg.RetryDelay, time.Nanosecond)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		todo = s.attemptBatch(ctx, todo, states)
		if len(todo) == 0 {
			return nil
		}
		logger.Debug().
			Int("attempt", attempt).
			Int("failed", len(todo)).
			Int("batch_size", len(batch)).
			Msg("batch attempt left failures")
		return retry.RetryableError(fmt.Errorf("%d of %d tickers failed", len(todo), len(batch)))
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Int("attempts", attempt).Msg("batch exhausted retries")
	}
}

// attemptBatch runs one attempt over tickers within PerBatchTimeout and returns the tickers still failing.
func (s *BatchReconciler) attemptBatch(ctx context.Context, tickers []string, states map[string]*tickerState) []string {
	batchCtx, cancel := withOptionalTimeout(ctx, s.cfg.PerBatchTimeout)
	defer cancel()

	quotes := make([]model.PriceQuote, len(tickers))
	errs := make([]error, len(tickers))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.BatchSize, 1))
	for i, t := range tickers {
		g.Go(func() error {
			quotes[i], errs[i] = s.resolver.FetchLive(batchCtx, t)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, t := range tickers {
		st := states[t]
		st.outcome.Attempts++
		if errs[i] != nil {
			st.outcome.Error = errs[i].Error()
			failed = append(failed, t)
			continue
		}
		st.outcome.Resolved = true
		st.outcome.Tier = quotes[i].Tier
		st.outcome.Error = ""
	}
	return failed
}

// applyFallback gives every attempted but unresolved ticker the persistent or estimated tier.
// Only a persisted observation counts as resolved.
func (s *BatchReconciler) applyFallback(ctx context.Context, order []string, states map[string]*tickerState, logger *logging.Logger) {
	for _, t := range order {
		st := states[t]
		if st.outcome.Resolved || st.outcome.Skipped || st.outcome.Attempts == 0 {
			continue
		}
		q, err := s.resolver.Fallback(ctx, t, ResolveOptions{})
		if err != nil {
			st.outcome.Error = err.Error()
			continue
		}
		st.outcome.Tier = q.Tier
		if q.Tier == model.TierPersistent {
			st.outcome.Resolved = true
			st.outcome.Error = ""
			logger.Info().
				Str("ticker", t).
				Str("age", model.FormatAge(q.Age)).
				Msg("ticker resolved from persisted quote")
		}
	}
}

func (s *BatchReconciler) outcomes(order []string, states map[string]*tickerState) []model.TickerOutcome {
	out := make([]model.TickerOutcome, 0, len(order))
	for _, t := range order {
		out = append(out, states[t].outcome)
	}
	return out
}

// finalize writes the terminal job record. A non-nil cause marks the job FAILED.
func (s *BatchReconciler) finalize(ctx context.Context, job model.BatchJobRecord, details []model.TickerOutcome, cause error) model.BatchJobRecord {
	ended := s.now().UTC()
	job.EndedAt = &ended
	job.Details = details
	job.Status = model.JobStatusSuccess
	job.TickersProcessed, job.TickersSucceeded, job.TickersFailed = 0, 0, 0
	job.ErrorSummary = []string{}

	skipped := 0
	for _, o := range details {
		if o.Skipped {
			skipped++
			continue
		}
		job.TickersProcessed++
		if o.Resolved {
			job.TickersSucceeded++
			continue
		}
		job.TickersFailed++
		s.addError(&job, fmt.Sprintf("%s: %s", o.Ticker, o.Error))
	}
	if skipped > 0 {
		s.addError(&job, fmt.Sprintf("%d tickers skipped: job timeout reached", skipped))
	}
	if cause != nil {
		job.Status = model.JobStatusFailed
		job.ErrorSummary = append([]string{cause.Error()}, job.ErrorSummary...)
		if s.cfg.ErrorSummaryCap > 0 && len(job.ErrorSummary) > s.cfg.ErrorSummaryCap {
			job.ErrorSummary = job.ErrorSummary[:s.cfg.ErrorSummaryCap]
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := s.jobs.FinalizeJob(writeCtx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to finalize batch job")
		job.Status = model.JobStatusFailed
		return job
	}

	if err := s.publisher.PublishJobCompleted(writeCtx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to publish job completed event")
	}
	return job
}

func (s *BatchReconciler) addError(job *model.BatchJobRecord, msg string) {
	if s.cfg.ErrorSummaryCap > 0 && len(job.ErrorSummary) >= s.cfg.ErrorSummaryCap {
		return
	}
	job.ErrorSummary = append(job.ErrorSummary, msg)
}

// pending returns the tickers that still need a live attempt.
func pending(order []string, states map[string]*tickerState) []string {
	out := make([]string, 0, len(order))
	for _, t := range order {
		if states[t].outcome.Error == "" {
			out = append(out, t)
		}
	}
	return out
}

// withOptionalTimeout applies d when it is positive.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = len(items)
	}
	var out [][]string
	for size > 0 && len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
