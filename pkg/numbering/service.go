package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates the reserve/finalize/release state machine on top of
// the counter store.
type Service struct {
	store         Store
	nowFn         func() int64
	logger        OperationLogger
	burnedVisible bool
}

// NewService wires a Service. Burned numbers are visible to callers unless
// configured otherwise.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, burnedVisible: true}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Reserve atomically advances the counter for kind and records a reservation
// holding the issued value. Two concurrent calls never observe the same
// value: the counter row is read under lock and advanced with a
// compare-and-swap that aborts the transaction on interleaving.
func (service *Service) Reserve(ctx context.Context, kind Kind) (Reservation, error) {
	var reservation Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		counter, err := transactionStore.GetCounter(ctx, kind)
		if err != nil {
			return err
		}
		issuedValue := counter.NextValue
		nowUnixUTC := service.nowFn()
		formatted := FormatNumber(counter.PrefixTemplate, counter.PadWidth, issuedValue, time.Unix(nowUnixUTC, 0).UTC())
		if err := transactionStore.AdvanceCounter(ctx, kind, issuedValue); err != nil {
			return err
		}
		reservation = Reservation{
			ReservationID:   uuid.NewString(),
			Kind:            kind,
			CounterValue:    issuedValue,
			FormattedNumber: formatted,
			Status:          StatusReserved,
			CreatedUnixUTC:  nowUnixUTC,
		}
		return transactionStore.CreateReservation(ctx, reservation)
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationReserve,
		Kind:            kind,
		ReservationID:   reservation.ReservationID,
		CounterValue:    reservation.CounterValue,
		FormattedNumber: reservation.FormattedNumber,
		Error:           operationError,
	})
	return reservation, operationError
}

// Finalize permanently binds the reservation's number to documentID.
// Repeating a finalize with the same document is a no-op; a different
// document is rejected, since a number maps to exactly one document.
func (service *Service) Finalize(ctx context.Context, reservationID string, documentID string) error {
	trimmedDocumentID := strings.TrimSpace(documentID)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if trimmedDocumentID == "" {
			return fmt.Errorf("%w: empty value", ErrInvalidDocumentID)
		}
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		switch reservation.Status {
		case StatusFinalized:
			if reservation.DocumentID == trimmedDocumentID {
				return nil
			}
			return fmt.Errorf("%w: %s is bound to document %s", ErrDocumentMismatch, reservation.FormattedNumber, reservation.DocumentID)
		case StatusReleased:
			return fmt.Errorf("%w: finalize after release", ErrInvalidTransition)
		}
		return transactionStore.UpdateReservationStatus(ctx, reservationID, StatusReserved, StatusFinalized, trimmedDocumentID)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationFinalize,
		ReservationID: reservationID,
		DocumentID:    trimmedDocumentID,
		Error:         operationError,
	})
	return operationError
}

// Release abandons a reservation. The counter rolls back only when the
// reserved value is still the tail; otherwise the number stays permanently
// consumed. Either way the reservation becomes terminal and its formatted
// number is never reissued to a live document by this reservation.
func (service *Service) Release(ctx context.Context, reservationID string) (ReleaseResult, error) {
	var result ReleaseResult
	var reservation Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		reservation = current
		switch current.Status {
		case StatusReleased:
			return nil
		case StatusFinalized:
			return fmt.Errorf("%w: release after finalize", ErrInvalidTransition)
		}
		if err := transactionStore.UpdateReservationStatus(ctx, reservationID, StatusReserved, StatusReleased, ""); err != nil {
			return err
		}
		reclaimed, err := transactionStore.RollbackCounter(ctx, current.Kind, current.CounterValue)
		if err != nil {
			return err
		}
		result.Reclaimed = reclaimed
		result.NumberBurned = !reclaimed && service.burnedVisible
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationRelease,
		Kind:            reservation.Kind,
		ReservationID:   reservationID,
		CounterValue:    reservation.CounterValue,
		FormattedNumber: reservation.FormattedNumber,
		Reclaimed:       result.Reclaimed,
		Error:           operationError,
	})
	if operationError != nil {
		return ReleaseResult{}, operationError
	}
	return result, nil
}

// Peek returns the counter state for kind without advancing it.
func (service *Service) Peek(ctx context.Context, kind Kind) (CounterState, error) {
	state, err := service.store.GetCounter(ctx, kind)
	service.logOperation(ctx, OperationLog{Operation: operationPeek, Kind: kind, Error: err})
	return state, err
}

// SetFormat is the administrative override used by settings screens. It
// rewrites the formatting rule only; NextValue is out of its reach.
func (service *Service) SetFormat(ctx context.Context, kind Kind, prefixTemplate string, padWidth int) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if padWidth < 1 {
			return fmt.Errorf("%w: pad width %d below 1", ErrInvalidCounterState, padWidth)
		}
		if _, err := transactionStore.GetCounter(ctx, kind); err != nil {
			return err
		}
		return transactionStore.UpdateCounterFormat(ctx, kind, prefixTemplate, padWidth)
	})
	service.logOperation(ctx, OperationLog{Operation: operationSetFormat, Kind: kind, Error: operationError})
	return operationError
}

// EnsureCounter creates the counter row for state.Kind when absent. An
// existing counter is left untouched so bootstrap never lowers NextValue.
func (service *Service) EnsureCounter(ctx context.Context, state CounterState) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := state.Validate(); err != nil {
			return err
		}
		_, err := transactionStore.GetCounter(ctx, state.Kind)
		if err == nil {
			return nil
		}
		if !isUnknownKind(err) {
			return err
		}
		return transactionStore.CreateCounter(ctx, state)
	})
	service.logOperation(ctx, OperationLog{Operation: operationEnsure, Kind: state.Kind, Error: operationError})
	return operationError
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
