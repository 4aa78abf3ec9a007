package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// ValidateCreateTransaction validates a transaction creation request.
// Checks all required fields and validates their formats and constraints.
//
// Required fields:
//   - ticker: Must match the accepted symbol format, including any exchange suffix
//   - type: Must be one of: BUY, SELL, DIVIDEND (case insensitive)
//   - quantity: Must be positive
//   - price: Must not be negative
//   - fees: Must not be negative
//   - tradeDate: Must be in YYYY-MM-DD format
//   - currency: Optional, a 3 letter code when provided
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateTransaction(req request.CreateTransactionRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Ticker) == "" {
		errors["ticker"] = "ticker is required"
	} else if _, err := ValidateTicker(req.Ticker); err != nil {
		errors["ticker"] = err.Error()
	} else if _, err := ValidateTicker(pricesource.FormatSymbol(req.Ticker, req.Exchange)); err != nil {
		errors["ticker"] = fmt.Sprintf("ticker is too long for exchange %s: %v", strings.ToUpper(req.Exchange), err)
	}

	if strings.TrimSpace(req.Type) == "" {
		errors["type"] = "type is required"
	} else if !model.TransactionType(strings.ToUpper(req.Type)).Valid() {
		errors["type"] = fmt.Sprintf("invalid type: %s", req.Type)
	}

	if !req.Quantity.IsPositive() {
		errors["quantity"] = "quantity must be positive"
	}
	if req.Price.IsNegative() {
		errors["price"] = "price cannot be negative"
	}
	if req.Fees.IsNegative() {
		errors["fees"] = "fees cannot be negative"
	}

	if strings.TrimSpace(req.TradeDate) == "" {
		errors["tradeDate"] = "tradeDate is required"
	} else if _, err := time.Parse("2006-01-02", req.TradeDate); err != nil {
		errors["tradeDate"] = err.Error()
	}

	if req.Currency != "" && len(strings.TrimSpace(req.Currency)) != 3 {
		errors["currency"] = "currency must be a 3 letter code"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
