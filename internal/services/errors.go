package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const maxQuantityScale = 6

var maxQuantity = decimal.NewFromInt(1_000_000)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
	ErrNoHousehold = errors.New("user has no household")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (err *ValidationError) Error() string {
	if err.Field == "" {
		return err.Message
	}
	return err.Field + ": " + err.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// notFoundOr maps a missing row to ErrNotFound and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// checkQuantity accepts positive quantities up to maxQuantity with at most
// maxQuantityScale decimal places. The exponent is checked before any comparison,
// since comparing rescales both operands to the smaller exponent.
func checkQuantity(field string, quantity decimal.Decimal) error {
	if exponent := quantity.Exponent(); exponent > maxQuantityScale || exponent < -maxQuantityScale {
		return invalid(field, "is out of range")
	}
	if !quantity.IsPositive() {
		return invalid(field, "must be positive")
	}
	if quantity.GreaterThan(maxQuantity) {
		return invalid(field, "must not exceed %s", maxQuantity)
	}
	return nil
}
