package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

type numberingStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *numberingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore numbering.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &numberingStore{db: transaction})
	})
}

// GetCounter reads the counter row for kind under a row lock, so concurrent
// advancement serializes per kind.
func (store *numberingStore) GetCounter(ctx context.Context, kind numbering.Kind) (numbering.CounterState, error) {
	var model NumberCounter
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ?", kind.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return numbering.CounterState{}, wrapStoreError(errorSubjectCounter, errorCodeGet, numbering.ErrUnknownKind)
		}
		return numbering.CounterState{}, wrapStoreError(errorSubjectCounter, errorCodeGet, err)
	}
	state := numbering.CounterState{
		Kind:           numbering.Kind(model.Kind),
		NextValue:      model.NextValue,
		PrefixTemplate: model.PrefixTemplate,
		PadWidth:       model.PadWidth,
	}
	if err := state.Validate(); err != nil {
		return numbering.CounterState{}, wrapStoreError(errorSubjectCounter, errorCodeInvalid, err)
	}
	return state, nil
}

func (store *numberingStore) CreateCounter(ctx context.Context, state numbering.CounterState) error {
	model := NumberCounter{
		Kind:           state.Kind.String(),
		NextValue:      state.NextValue,
		PrefixTemplate: state.PrefixTemplate,
		PadWidth:       state.PadWidth,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectCounter, errorCodeCreate, numbering.ErrKindExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeCreate, err)
	}
	return nil
}

// AdvanceCounter increments next_value with a compare-and-swap. A zero row
// count means another advance interleaved despite the row lock; the enclosing
// transaction aborts rather than double-issue.
func (store *numberingStore) AdvanceCounter(ctx context.Context, kind numbering.Kind, issuedValue int64) error {
	result := store.db.WithContext(ctx).
		Model(&NumberCounter{}).
		Where("kind = ? AND next_value = ?", kind.String(), issuedValue).
		Update("next_value", issuedValue+1)
	if result.Error != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCounter, errorCodeUpdate, numbering.ErrCounterConflict)
	}
	return nil
}

// RollbackCounter undoes the advancement of issuedValue only while it is
// still the tail. A zero row count is a refusal, not an error: the value
// stays permanently consumed.
func (store *numberingStore) RollbackCounter(ctx context.Context, kind numbering.Kind, issuedValue int64) (bool, error) {
	result := store.db.WithContext(ctx).
		Model(&NumberCounter{}).
		Where("kind = ? AND next_value = ?", kind.String(), issuedValue+1).
		Update("next_value", issuedValue)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectCounter, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (store *numberingStore) UpdateCounterFormat(ctx context.Context, kind numbering.Kind, prefixTemplate string, padWidth int) error {
	result := store.db.WithContext(ctx).
		Model(&NumberCounter{}).
		Where("kind = ?", kind.String()).
		Updates(map[string]any{"prefix_template": prefixTemplate, "pad_width": padWidth})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCounter, errorCodeUpdate, numbering.ErrUnknownKind)
	}
	return nil
}

func (store *numberingStore) CreateReservation(ctx context.Context, reservation numbering.Reservation) error {
	var documentID *string
	if reservation.DocumentID != "" {
		value := reservation.DocumentID
		documentID = &value
	}
	model := NumberReservation{
		ReservationID:   reservation.ReservationID,
		Kind:            reservation.Kind.String(),
		CounterValue:    reservation.CounterValue,
		FormattedNumber: reservation.FormattedNumber,
		Status:          reservation.Status.String(),
		DocumentID:      documentID,
		CreatedAt:       time.Unix(reservation.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeCreate, err)
	}
	return nil
}

// GetReservation reads a reservation row under a row lock.
func (store *numberingStore) GetReservation(ctx context.Context, reservationID string) (numbering.Reservation, error) {
	var model NumberReservation
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reservation_id = ?", reservationID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return numbering.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, numbering.ErrUnknownReservation)
		}
		return numbering.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	status, err := numbering.ParseReservationStatus(model.Status)
	if err != nil {
		return numbering.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	documentID := ""
	if model.DocumentID != nil {
		documentID = *model.DocumentID
	}
	return numbering.Reservation{
		ReservationID:   model.ReservationID,
		Kind:            numbering.Kind(model.Kind),
		CounterValue:    model.CounterValue,
		FormattedNumber: model.FormattedNumber,
		Status:          status,
		DocumentID:      documentID,
		CreatedUnixUTC:  model.CreatedAt.Unix(),
	}, nil
}

// UpdateReservationStatus transitions a reservation with a compare-and-swap
// on the current status.
func (store *numberingStore) UpdateReservationStatus(ctx context.Context, reservationID string, from numbering.ReservationStatus, to numbering.ReservationStatus, documentID string) error {
	updates := map[string]any{"status": to.String()}
	if documentID != "" {
		updates["document_id"] = documentID
	}
	result := store.db.WithContext(ctx).
		Model(&NumberReservation{}).
		Where("reservation_id = ? AND status = ?", reservationID, from.String()).
		Updates(updates)
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, numbering.ErrInvalidTransition)
	}
	return nil
}
