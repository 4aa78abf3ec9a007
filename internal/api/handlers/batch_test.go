package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/testutil"
)

func TestBatchHandler(t *testing.T) {
	setupHandler := func(t *testing.T, source *testutil.MockSource) *BatchHandler {
		t.Helper()
		db := testutil.SetupTestDB(t)

		alice := testutil.MakeUserID()
		testutil.NewTransaction(alice, "AAPL").Build(t, db)
		testutil.NewTransaction(testutil.MakeUserID(), "MSFT").Build(t, db)

		cfg := testutil.NewTestBatchConfig()
		return NewBatchHandler(
			testutil.NewTestReconciler(t, db, source, cfg),
			testutil.NewTestCleanupService(t, db, config.ScheduleConfig{JobRetentionDays: 90, HistoryRetentionDays: 7}),
			cfg.DailyStaleHours,
		)
	}

	reconcile := func(t *testing.T, handler *BatchHandler, body any) *httptest.ResponseRecorder {
		t.Helper()
		w := httptest.NewRecorder()
		handler.Reconcile(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/batch/reconcile", body, nil))
		return w
	}

	t.Run("empty body reconciles all users with the default threshold", func(t *testing.T) {
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 190).WithPrice("MSFT", 410)
		handler := setupHandler(t, source)

		w := reconcile(t, handler, nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		job := decodeBody[model.BatchJobRecord](t, w)
		assert.Equal(t, model.JobTypeManual, job.JobType)
		assert.Equal(t, model.JobStatusSuccess, job.Status)
		assert.Equal(t, 2, job.TickersProcessed)
		assert.Equal(t, 2, job.TickersSucceeded)
		assert.Zero(t, job.TickersFailed)
	})

	t.Run("failed tickers still return the job", func(t *testing.T) {
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 190)
		handler := setupHandler(t, source)

		w := reconcile(t, handler, map[string]any{"hoursStale": 12})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		job := decodeBody[model.BatchJobRecord](t, w)
		assert.Equal(t, 1, job.TickersFailed)
		assert.NotEmpty(t, job.ErrorSummary)
	})

	t.Run("catch up run", func(t *testing.T) {
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 190).WithPrice("MSFT", 410)
		handler := setupHandler(t, source)

		w := reconcile(t, handler, map[string]any{"catchUp": true})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		job := decodeBody[model.BatchJobRecord](t, w)
		assert.Equal(t, model.JobTypeCatchUp, job.JobType)
	})

	t.Run("validation errors", func(t *testing.T) {
		handler := setupHandler(t, testutil.NewMockSource("mock"))

		for _, body := range []any{
			map[string]any{"scope": "user"},
			map[string]any{"scope": "everyone"},
			map[string]any{"hoursStale": -1},
			map[string]any{"catchUp": true, "scope": "user", "userId": "alice"},
			`{"hoursStale": "soon"}`,
		} {
			w := reconcile(t, handler, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, "body %v: %s", body, w.Body.String())
		}
	})

	t.Run("lists jobs and fetches one by id", func(t *testing.T) {
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 190).WithPrice("MSFT", 410)
		handler := setupHandler(t, source)

		require.Equal(t, http.StatusOK, reconcile(t, handler, nil).Code)

		w := httptest.NewRecorder()
		handler.Jobs(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/batch/jobs", map[string]string{"limit": "5"}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		jobs := decodeBody[[]model.BatchJobRecord](t, w)
		require.Len(t, jobs, 1)

		w = httptest.NewRecorder()
		handler.Job(w, testutil.NewRequestWithURLParams(http.MethodGet, "/", map[string]string{"jobID": jobs[0].JobID}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		job := decodeBody[model.BatchJobRecord](t, w)
		assert.Equal(t, jobs[0].JobID, job.JobID)
		assert.Len(t, job.Details, 2)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		handler := setupHandler(t, testutil.NewMockSource("mock"))

		w := httptest.NewRecorder()
		handler.Job(w, testutil.NewRequestWithURLParams(http.MethodGet, "/", map[string]string{"jobID": testutil.MakeID()}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects an out of range limit", func(t *testing.T) {
		handler := setupHandler(t, testutil.NewMockSource("mock"))

		w := httptest.NewRecorder()
		handler.Jobs(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/", map[string]string{"limit": "500"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cleanup reports deleted rows", func(t *testing.T) {
		handler := setupHandler(t, testutil.NewMockSource("mock"))

		w := httptest.NewRecorder()
		handler.Cleanup(w, httptest.NewRequest(http.MethodPost, "/api/batch/cleanup", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decodeBody[service.CleanupResult](t, w)
		assert.Zero(t, res.JobsDeleted)
	})
}
