package request

import (
	"fmt"
	"strconv"
	"strings"
)

// Reconcile scopes accepted by POST /api/batch/reconcile.
const (
	ScopeAllUsers   = "all"
	ScopeSingleUser = "user"
)

// ReconcileRequest is the body of POST /api/batch/reconcile.
// HoursStale defaults to the daily threshold and Scope to all users.
// CatchUp uses the catch-up threshold over all users and is rejected with Scope "user".
type ReconcileRequest struct {
	HoursStale int    `json:"hoursStale"`
	Scope      string `json:"scope"`
	UserID     string `json:"userId"`
	CatchUp    bool   `json:"catchUp"`
}

const (
	defaultJobLimit = 20
	maxJobLimit     = 100
)

// ParseJobLimit parses the limit query parameter of GET /api/batch/jobs.
// An empty value yields the default; values must be between 1 and 100.
func ParseJobLimit(limitParam string) (int, error) {
	limitParam = strings.TrimSpace(limitParam)
	if limitParam == "" {
		return defaultJobLimit, nil
	}

	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %s", limitParam)
	}
	if limit < 1 || limit > maxJobLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxJobLimit)
	}
	return limit, nil
}
