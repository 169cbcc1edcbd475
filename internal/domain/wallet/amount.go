package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest magnitude the ledger accepts, matching the
// NUMERIC(16,4) column that stores it.
var MaxAmount = decimal.RequireFromString("999999999.9999")

// FractionalDigits is the fixed-point precision of every stored amount.
const FractionalDigits = 4

// ParseAmount validates and normalizes a raw transaction amount.
//
// The raw value is kept as the caller's literal input so precision checks see
// exactly what was sent. Rejected inputs: anything that is not a finite
// number, zero, magnitudes above MaxAmount, and values carrying more than
// four significant fractional digits — normalization must never silently
// change what the caller asked for.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := parseFinite(raw, "amount")
	if err != nil {
		return decimal.Zero, err
	}

	normalized := d.Round(FractionalDigits)

	// Round is half-away-from-zero; if it changed the value, the caller sent
	// more fractional digits than the ledger stores.
	if !normalized.Equal(d) {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("amount cannot have more than %d decimal places: %s", FractionalDigits, raw),
			FieldError{Field: "amount", Message: fmt.Sprintf("no more than %d decimal places allowed", FractionalDigits)},
		)
	}

	if normalized.IsZero() {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			"amount cannot be zero",
			FieldError{Field: "amount", Message: "amount cannot be zero"},
		)
	}

	if normalized.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("amount cannot exceed %s", MaxAmount),
			FieldError{Field: "amount", Message: fmt.Sprintf("amount cannot exceed %s", MaxAmount)},
		)
	}

	return normalized, nil
}

// ParseBalance validates a raw opening balance: same shape rules as
// ParseAmount, but zero is allowed and the value must not be negative.
func ParseBalance(raw string) (decimal.Decimal, error) {
	d, err := parseFinite(raw, "balance")
	if err != nil {
		return decimal.Zero, err
	}

	normalized := d.Round(FractionalDigits)
	if !normalized.Equal(d) {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("balance cannot have more than %d decimal places: %s", FractionalDigits, raw),
			FieldError{Field: "balance", Message: fmt.Sprintf("no more than %d decimal places allowed", FractionalDigits)},
		)
	}

	if normalized.IsNegative() {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			"balance cannot be negative",
			FieldError{Field: "balance", Message: "balance must be greater than or equal to 0"},
		)
	}

	if normalized.GreaterThan(MaxAmount) {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("balance cannot exceed %s", MaxAmount),
			FieldError{Field: "balance", Message: fmt.Sprintf("balance cannot exceed %s", MaxAmount)},
		)
	}

	return normalized, nil
}

func parseFinite(raw, field string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			field+" is required",
			FieldError{Field: field, Message: field + " is required"},
		)
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("invalid %s: %s", field, raw),
			FieldError{Field: field, Message: field + " must be a valid finite number"},
		)
	}
	return d, nil
}
