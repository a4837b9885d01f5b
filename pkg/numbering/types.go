package numbering

import (
	"context"
	"fmt"
	"strings"
)

// Kind selects an independent counter with its own formatting rule.
type Kind string

const (
	KindInvoice  Kind = "invoice"
	KindOffer    Kind = "offer"
	KindCustomer Kind = "customer"
)

// ParseKind validates a raw kind value.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.TrimSpace(strings.ToLower(raw))) {
	case KindInvoice:
		return KindInvoice, nil
	case KindOffer:
		return KindOffer, nil
	case KindCustomer:
		return KindCustomer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// String returns the stored representation.
func (kind Kind) String() string {
	return string(kind)
}

// CounterState is the persistent per-kind counter plus its formatting rule.
// NextValue only ever increases, except the bounded rollback performed by
// Release when it exactly undoes the most recent uncommitted advancement.
type CounterState struct {
	Kind           Kind
	NextValue      int64
	PrefixTemplate string
	PadWidth       int
}

// Validate checks the counter invariants.
func (state CounterState) Validate() error {
	if _, err := ParseKind(state.Kind.String()); err != nil {
		return err
	}
	if state.NextValue < 1 {
		return fmt.Errorf("%w: next value %d below 1", ErrInvalidCounterState, state.NextValue)
	}
	if state.PadWidth < 1 {
		return fmt.Errorf("%w: pad width %d below 1", ErrInvalidCounterState, state.PadWidth)
	}
	return nil
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusFinalized ReservationStatus = "finalized"
	StatusReleased  ReservationStatus = "released"
)

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case StatusReserved, StatusFinalized, StatusReleased:
		return ReservationStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the stored representation.
func (status ReservationStatus) String() string {
	return string(status)
}

// Reservation is a provisional claim on a document number. Rows are never
// deleted; terminal reservations remain as the audit trail of issuance.
type Reservation struct {
	ReservationID   string
	Kind            Kind
	CounterValue    int64
	FormattedNumber string
	Status          ReservationStatus
	DocumentID      string
	CreatedUnixUTC  int64
}

// ReleaseResult reports the outcome of a Release call. Reclaimed is true when
// the counter rolled back. NumberBurned is the user-facing gap indicator and
// is suppressed when the service is configured to hide burned numbers.
type ReleaseResult struct {
	Reclaimed    bool
	NumberBurned bool
}

// Store is the persistence contract used by Service. Counter reads inside a
// transaction take a row lock so advancement serializes per kind; the
// compare-and-swap updates are the backstop.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetCounter(ctx context.Context, kind Kind) (CounterState, error)
	CreateCounter(ctx context.Context, state CounterState) error
	AdvanceCounter(ctx context.Context, kind Kind, issuedValue int64) error
	RollbackCounter(ctx context.Context, kind Kind, issuedValue int64) (bool, error)
	UpdateCounterFormat(ctx context.Context, kind Kind, prefixTemplate string, padWidth int) error
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID string) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID string, from ReservationStatus, to ReservationStatus, documentID string) error
}
