package billing

import "errors"

// Domain-level error values returned by the repository.
var (
	ErrInvalidEntity        = errors.New("invalid entity")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrOfferNotFound        = errors.New("offer not found")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
