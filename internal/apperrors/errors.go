package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrQuoteNotFound indicates that no persisted quote exists for a ticker.
	ErrQuoteNotFound = errors.New("price quote not found")

	// ErrBatchJobNotFound indicates that a batch job with the given ID does not exist.
	ErrBatchJobNotFound = errors.New("batch job not found")

	// ErrOverrideNotFound indicates that no manual price override exists for the user and ticker.
	ErrOverrideNotFound = errors.New("manual price override not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidTicker indicates that a ticker does not match the accepted symbol format.
	// This is the only error the price resolver returns to its callers.
	ErrInvalidTicker = errors.New("invalid ticker format")

	// ErrInvalidUserID indicates that a user ID is missing or malformed.
	ErrInvalidUserID = errors.New("user ID is required")

	// ErrInvalidScope indicates that a reconcile request named neither all users nor a single user.
	ErrInvalidScope = errors.New("invalid reconcile scope")

	// ErrInvalidStaleHours indicates that the staleness threshold is not positive.
	ErrInvalidStaleHours = errors.New("stale hours must be greater than zero")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveTransactions = errors.New("failed to retrieve transactions")
	ErrFailedToRetrieveOverrides    = errors.New("failed to retrieve manual price overrides")
	ErrFailedToValuePortfolio       = errors.New("failed to value portfolio")
	ErrFailedToRetrieveJobs         = errors.New("failed to retrieve batch jobs")

	// ErrJobBookkeeping marks a batch job that could not record its own progress.
	// The job is finalized as FAILED when this happens.
	ErrJobBookkeeping = errors.New("batch job bookkeeping failed")
)
