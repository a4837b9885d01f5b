package numbering

import "errors"

// Domain-level error values returned by the reservation manager.
var (
	ErrUnknownKind              = errors.New("unknown number kind")
	ErrUnknownReservation       = errors.New("unknown reservation")
	ErrInvalidTransition        = errors.New("invalid reservation transition")
	ErrDocumentMismatch         = errors.New("reservation already finalized with a different document")
	ErrInvalidDocumentID        = errors.New("invalid document id")
	ErrInvalidCounterState      = errors.New("invalid counter state")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrKindExists               = errors.New("counter already exists")
	ErrCounterConflict          = errors.New("counter advanced concurrently")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

func isUnknownKind(err error) bool {
	return errors.Is(err, ErrUnknownKind)
}
