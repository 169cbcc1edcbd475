package wallet

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can match on category instead of
// string-matching messages.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindConflict            Kind = "CONFLICT"
	KindInfrastructure      Kind = "INFRASTRUCTURE"
)

// Error codes carried alongside the kind for client-side handling.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInvalidName         = "INVALID_NAME"
	CodeInvalidDescription  = "INVALID_DESCRIPTION"
	CodeMissingIdempotency  = "MISSING_IDEMPOTENCY_KEY"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeDuplicateName       = "DUPLICATE_WALLET_NAME"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
)

// FieldError carries field-level detail for validation failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the domain error type for the ledger engine. Every failure that
// crosses a package boundary is one of these, so each layer can match on
// Kind with errors.As.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidationError builds a recoverable input error with field detail.
func NewValidationError(code, message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Fields: fields}
}

// NewNotFoundError reports an unknown wallet or an owner mismatch. The two
// cases are indistinguishable on purpose so wallet existence never leaks.
func NewNotFoundError(walletID string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeWalletNotFound,
		Message: fmt.Sprintf("wallet not found: %s", walletID),
	}
}

// NewInsufficientBalanceError reports a debit that would drive the balance
// negative. Available and required amounts are surfaced as field detail.
func NewInsufficientBalanceError(available, required string) *Error {
	return &Error{
		Kind:    KindInsufficientBalance,
		Code:    CodeInsufficientBalance,
		Message: "insufficient balance",
		Fields: []FieldError{{
			Field:   "amount",
			Message: fmt.Sprintf("insufficient balance. Available: %s, Required: %s", available, required),
		}},
	}
}

// NewConflictError reports a unique-constraint violation, e.g. a duplicate
// wallet name for the same owner.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeDuplicateName, Message: message}
}

// NewInfrastructureError wraps a store or cache failure that is fatal to the
// current call.
func NewInfrastructureError(message string, cause error) *Error {
	return &Error{Kind: KindInfrastructure, Code: CodeStoreUnavailable, Message: message, cause: cause}
}

// IsKind reports whether err is a domain Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
