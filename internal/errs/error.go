package errs

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateTitle    = errors.New("book with this title already exists")
	ErrOutOfStock        = errors.New("book is out of stock")
	ErrPendingPayment    = errors.New("pay your pending payments before borrowing a new book")
	ErrAlreadyReturned   = errors.New("borrowing is already returned")
	ErrInvalidReturnDate = errors.New("actual return date must not be in the past")
	ErrPermissionDenied  = errors.New("permission denied")
)

type ValidationErrorResponse struct {
	Message string `json:"message"`
	Errors  struct {
		AdditionalProperties string `json:"additionalProperties"`
	} `json:"errors"`
}
