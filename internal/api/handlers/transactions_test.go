package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/testutil"
)

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	setupHandler := func(t *testing.T) *TransactionHandler {
		t.Helper()
		db := testutil.SetupTestDB(t)
		return NewTransactionHandler(testutil.NewTestTransactionService(t, db))
	}

	t.Run("creates a buy", func(t *testing.T) {
		handler := setupHandler(t)
		userID := testutil.MakeUserID()

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/users/"+userID+"/transactions", map[string]any{
			"ticker":    " aapl ",
			"type":      "buy",
			"quantity":  "10",
			"price":     "150.25",
			"tradeDate": "2024-03-01",
			"exchange":  "nasdaq",
		}, map[string]string{"userID": userID})
		w := httptest.NewRecorder()

		handler.CreateTransaction(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		tx := decodeBody[model.Transaction](t, w)
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, userID, tx.UserID)
		assert.Equal(t, "AAPL", tx.Ticker)
		assert.Equal(t, model.TransactionTypeBuy, tx.Type)
		assert.Equal(t, "USD", tx.Currency)
		assert.Equal(t, "NASDAQ", tx.Exchange)
		assert.True(t, decimal.RequireFromString("150.25").Equal(tx.Price))
	})

	t.Run("returns field errors for an invalid request", func(t *testing.T) {
		handler := setupHandler(t)
		userID := testutil.MakeUserID()

		req := testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]any{
			"ticker":   "AAPL",
			"type":     "GIFT",
			"quantity": "0",
		}, map[string]string{"userID": userID})
		w := httptest.NewRecorder()

		handler.CreateTransaction(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody[struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}](t, w)
		assert.Contains(t, body.Details, "type")
		assert.Contains(t, body.Details, "quantity")
		assert.Contains(t, body.Details, "tradeDate")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		handler := setupHandler(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/", `{"ticker":"AAPL","portfolio":"x"}`,
			map[string]string{"userID": testutil.MakeUserID()})
		w := httptest.NewRecorder()

		handler.CreateTransaction(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody[response.ErrorResponse](t, w)
		assert.Equal(t, "invalid request body", body.Error)
	})
}

func TestTransactionHandler_Transactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))

	userID := testutil.MakeUserID()
	testutil.NewTransaction(userID, "AAPL").Build(t, db)
	testutil.NewTransaction(userID, "MSFT").Build(t, db)
	testutil.NewTransaction(testutil.MakeUserID(), "AAPL").Build(t, db)

	t.Run("lists the user's transactions", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/", map[string]string{"userID": userID})
		w := httptest.NewRecorder()

		handler.Transactions(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		txs := decodeBody[[]model.Transaction](t, w)
		assert.Len(t, txs, 2)
	})

	t.Run("returns an empty array for an unknown user", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/", map[string]string{"userID": "nobody"})
		w := httptest.NewRecorder()

		handler.Transactions(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestTransactionHandler_Positions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))

	userID := testutil.MakeUserID()
	testutil.NewTransaction(userID, "AAPL").WithQuantity(10).WithPrice(100).Build(t, db)
	testutil.NewTransaction(userID, "AAPL").Sell().WithQuantity(4).WithPrice(150).
		WithDate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).Build(t, db)

	req := testutil.NewRequestWithURLParams(http.MethodGet, "/", map[string]string{"userID": userID})
	w := httptest.NewRecorder()

	handler.Positions(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ticker":"AAPL"`)
}
