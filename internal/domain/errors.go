package domain

import (
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/cartstore/pkg/errors"
)

// EntryNotFoundError is returned when a command names an entry that is not in
// the cart.
type EntryNotFoundError struct {
	Name string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("cart entry %q not found", e.Name)
}

func (e *EntryNotFoundError) Unwrap() error {
	return &apperrors.AppError{
		Code:    "ENTRY_NOT_FOUND",
		Message: e.Error(),
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}
}

// MalformedPriceError is returned when a cost string cannot be read as an amount.
type MalformedPriceError struct {
	Raw    string
	Reason string
}

func (e *MalformedPriceError) Error() string {
	return fmt.Sprintf("malformed price %q: %s", e.Raw, e.Reason)
}

func (e *MalformedPriceError) Unwrap() error {
	return &apperrors.AppError{
		Code:    "MALFORMED_PRICE",
		Message: e.Error(),
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
}
