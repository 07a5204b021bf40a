// Package domain holds the error taxonomy shared by every layer.  Services
// wrap these sentinels with fmt.Errorf("%w: detail", domain.ErrXxx) and the
// HTTP layer maps them to status codes through CodeOf.
package domain

import "errors"

// Error message constants.  Tests match on these with assert.ErrorIs or
// assert.Contains.
const (
	ErrMsgNotFound          = "not found"
	ErrMsgForbidden         = "forbidden"
	ErrMsgInvalidInput      = "invalid input"
	ErrMsgInsufficientFunds = "insufficient funds"
	ErrMsgConflict          = "conflict"
)

var (
	// ErrNotFound: the referenced entity is absent or not visible to the caller.
	ErrNotFound = errors.New(ErrMsgNotFound)
	// ErrForbidden: authenticated but lacking rights (ownership or admin).
	ErrForbidden = errors.New(ErrMsgForbidden)
	// ErrInvalidInput: malformed or missing field, non-positive price, etc.
	ErrInvalidInput = errors.New(ErrMsgInvalidInput)
	// ErrInsufficientFunds: buyer balance below the asking price.
	ErrInsufficientFunds = errors.New(ErrMsgInsufficientFunds)
	// ErrConflict: the operation contradicts the current state.
	ErrConflict = errors.New(ErrMsgConflict)
)

// Code is the wire form of the taxonomy.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL"
)

// CodeOf classifies err.  Anything not wrapping a sentinel is Internal.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}
