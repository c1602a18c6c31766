// Package security provides input validation and credential masking.
package security

import (
	"regexp"
	"strings"

	"frc-research/internal/errors"
)

// Ticker pattern: exchange symbols with optional class or venue suffix (BRK.B, ACME.V, ABC-U).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.&-]{0,19}$`)

// ValidateTicker checks a normalized ticker before it is placed in a request path.
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return errors.NewValidationError("ticker", ticker, "must not be empty")
	}
	if len(ticker) > 20 {
		return errors.NewValidationError("ticker", ticker, "too long (max 20 characters)")
	}
	if !tickerPattern.MatchString(ticker) {
		return errors.NewValidationError("ticker", ticker, "invalid ticker format")
	}
	return nil
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
