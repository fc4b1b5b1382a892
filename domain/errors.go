package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyFulfilled  = errors.New("recipient already fulfilled")
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError is returned when no batch set can cover a request.
// Available is the total seen for BloodType, or the best candidate when
// several donor types were tried.
type InsufficientStockError struct {
	BloodType BloodType
	Needed    int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s: needed %d, available %d", e.BloodType, e.Needed, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
