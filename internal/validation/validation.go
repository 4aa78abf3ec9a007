package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
)

// Common validation errors
var (
	ErrInvalidUUID = fmt.Errorf("invalid UUID format")
)

// tickerPattern accepts exchange suffixed symbols (AIR.NZ), class shares (BRK-B)
// and index or FX style symbols (^GSPC, EURUSD=X).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-^=]{0,14}$`)

// userIDPattern restricts user IDs to URL safe identifiers.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-@.]{1,64}$`)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUUID, id)
	}
	return nil
}

// NormalizeTicker trims and uppercases a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTicker normalizes a ticker and checks it against the accepted symbol format.
// Returns the normalized ticker or an error wrapping apperrors.ErrInvalidTicker.
func ValidateTicker(ticker string) (string, error) {
	t := NormalizeTicker(ticker)
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidTicker, ticker)
	}
	return t, nil
}

// ValidateUserID checks that a user ID is present and URL safe.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidUserID, userID)
	}
	return nil
}
