package validation

import (
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
)

// ValidateSetManualPrice validates a manual price override request.
// The price must be positive and expiresHours, when given, must be positive.
func ValidateSetManualPrice(req request.SetManualPriceRequest) error {
	errors := make(map[string]string)

	if !req.Price.IsPositive() {
		errors["price"] = "price must be positive"
	}
	if req.ExpiresHours != nil && *req.ExpiresHours <= 0 {
		errors["expiresHours"] = "expiresHours must be positive"
	}
	if len(req.Reason) > 255 {
		errors["reason"] = "reason must be at most 255 characters"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateReconcile validates a reconcile request.
func ValidateReconcile(req request.ReconcileRequest) error {
	errors := make(map[string]string)

	if req.HoursStale < 0 {
		errors["hoursStale"] = "hoursStale must be positive"
	}

	switch req.Scope {
	case "", request.ScopeAllUsers:
	case request.ScopeSingleUser:
		if err := ValidateUserID(req.UserID); err != nil {
			errors["userId"] = err.Error()
		}
		if req.CatchUp {
			errors["catchUp"] = "catchUp always covers all users and cannot be combined with scope \"user\""
		}
	default:
		errors["scope"] = "scope must be \"all\" or \"user\""
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
