package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// stubStore keeps counters and reservations in memory behind a mutex so
// concurrent Reserve calls exercise the same serialization the row lock
// provides in SQL.
type stubStore struct {
	mu           sync.Mutex
	counters     map[Kind]CounterState
	reservations map[string]Reservation
	createErr    error
}

func newStubStore(states ...CounterState) *stubStore {
	store := &stubStore{
		counters:     map[Kind]CounterState{},
		reservations: map[string]Reservation{},
	}
	for _, state := range states {
		store.counters[state.Kind] = state
	}
	return store
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	countersBackup := make(map[Kind]CounterState, len(store.counters))
	for kind, state := range store.counters {
		countersBackup[kind] = state
	}
	reservationsBackup := make(map[string]Reservation, len(store.reservations))
	for id, reservation := range store.reservations {
		reservationsBackup[id] = reservation
	}
	if err := fn(ctx, (*lockedStore)(store)); err != nil {
		store.counters = countersBackup
		store.reservations = reservationsBackup
		return err
	}
	return nil
}

func (store *stubStore) GetCounter(ctx context.Context, kind Kind) (CounterState, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).GetCounter(ctx, kind)
}

func (store *stubStore) CreateCounter(ctx context.Context, state CounterState) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).CreateCounter(ctx, state)
}

func (store *stubStore) AdvanceCounter(ctx context.Context, kind Kind, issuedValue int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).AdvanceCounter(ctx, kind, issuedValue)
}

func (store *stubStore) RollbackCounter(ctx context.Context, kind Kind, issuedValue int64) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).RollbackCounter(ctx, kind, issuedValue)
}

func (store *stubStore) UpdateCounterFormat(ctx context.Context, kind Kind, prefixTemplate string, padWidth int) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).UpdateCounterFormat(ctx, kind, prefixTemplate, padWidth)
}

func (store *stubStore) CreateReservation(ctx context.Context, reservation Reservation) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).CreateReservation(ctx, reservation)
}

func (store *stubStore) GetReservation(ctx context.Context, reservationID string) (Reservation, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).GetReservation(ctx, reservationID)
}

func (store *stubStore) UpdateReservationStatus(ctx context.Context, reservationID string, from ReservationStatus, to ReservationStatus, documentID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return (*lockedStore)(store).UpdateReservationStatus(ctx, reservationID, from, to, documentID)
}

// lockedStore is the in-transaction view; the mutex is already held.
type lockedStore stubStore

func (store *lockedStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *lockedStore) GetCounter(_ context.Context, kind Kind) (CounterState, error) {
	state, exists := store.counters[kind]
	if !exists {
		return CounterState{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return state, nil
}

func (store *lockedStore) CreateCounter(_ context.Context, state CounterState) error {
	if _, exists := store.counters[state.Kind]; exists {
		return fmt.Errorf("%w: %q", ErrKindExists, state.Kind)
	}
	store.counters[state.Kind] = state
	return nil
}

func (store *lockedStore) AdvanceCounter(_ context.Context, kind Kind, issuedValue int64) error {
	state, exists := store.counters[kind]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if state.NextValue != issuedValue {
		return fmt.Errorf("%w: kind %q", ErrCounterConflict, kind)
	}
	state.NextValue = issuedValue + 1
	store.counters[kind] = state
	return nil
}

func (store *lockedStore) RollbackCounter(_ context.Context, kind Kind, issuedValue int64) (bool, error) {
	state, exists := store.counters[kind]
	if !exists {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if state.NextValue != issuedValue+1 {
		return false, nil
	}
	state.NextValue = issuedValue
	store.counters[kind] = state
	return true, nil
}

func (store *lockedStore) UpdateCounterFormat(_ context.Context, kind Kind, prefixTemplate string, padWidth int) error {
	state, exists := store.counters[kind]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	state.PrefixTemplate = prefixTemplate
	state.PadWidth = padWidth
	store.counters[kind] = state
	return nil
}

func (store *lockedStore) CreateReservation(_ context.Context, reservation Reservation) error {
	if store.createErr != nil {
		return store.createErr
	}
	store.reservations[reservation.ReservationID] = reservation
	return nil
}

func (store *lockedStore) GetReservation(_ context.Context, reservationID string) (Reservation, error) {
	reservation, exists := store.reservations[reservationID]
	if !exists {
		return Reservation{}, fmt.Errorf("%w: %q", ErrUnknownReservation, reservationID)
	}
	return reservation, nil
}

func (store *lockedStore) UpdateReservationStatus(_ context.Context, reservationID string, from ReservationStatus, to ReservationStatus, documentID string) error {
	reservation, exists := store.reservations[reservationID]
	if !exists || reservation.Status != from {
		return fmt.Errorf("%w: reservation %q", ErrInvalidTransition, reservationID)
	}
	reservation.Status = to
	if documentID != "" {
		reservation.DocumentID = documentID
	}
	store.reservations[reservationID] = reservation
	return nil
}

func fixedClock(unix int64) func() int64 {
	return func() int64 { return unix }
}

// clock2026 is noon UTC on 2026-03-14.
var clock2026 = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC).Unix()

func invoiceCounterAt(value int64) CounterState {
	return CounterState{Kind: KindInvoice, NextValue: value, PrefixTemplate: "RE-%Y-", PadWidth: 3}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, fixedClock(clock2026), options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustReserve(test *testing.T, service *Service, kind Kind) Reservation {
	test.Helper()
	reservation, err := service.Reserve(context.Background(), kind)
	if err != nil {
		test.Fatalf("reserve: %v", err)
	}
	return reservation
}

func TestReserveIssuesFormattedNumberAndAdvances(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(104))
	service := mustNewService(test, store)

	reservation := mustReserve(test, service, KindInvoice)

	if reservation.FormattedNumber != "RE-2026-104" {
		test.Fatalf("expected RE-2026-104, got %q", reservation.FormattedNumber)
	}
	if reservation.CounterValue != 104 {
		test.Fatalf("expected counter value 104, got %d", reservation.CounterValue)
	}
	if reservation.Status != StatusReserved {
		test.Fatalf("expected reserved status, got %s", reservation.Status)
	}
	if reservation.ReservationID == "" {
		test.Fatalf("expected a reservation id")
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 105 {
		test.Fatalf("expected next value 105, got %d", state.NextValue)
	}
}

func TestReserveUnknownKind(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	if _, err := service.Reserve(context.Background(), KindInvoice); !errors.Is(err, ErrUnknownKind) {
		test.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestConcurrentReservesNeverShareAValue(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(1))
	service := mustNewService(test, store)

	const workers = 32
	values := make(chan int64, workers)
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reservation, err := service.Reserve(context.Background(), KindInvoice)
			if err != nil {
				test.Errorf("reserve: %v", err)
				return
			}
			values <- reservation.CounterValue
		}()
	}
	wg.Wait()
	close(values)

	seen := map[int64]bool{}
	for value := range values {
		if seen[value] {
			test.Fatalf("value %d issued twice", value)
		}
		seen[value] = true
	}
	if len(seen) != workers {
		test.Fatalf("expected %d distinct values, got %d", workers, len(seen))
	}
}

func TestFinalizeBindsDocument(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(1))
	service := mustNewService(test, store)
	reservation := mustReserve(test, service, KindInvoice)

	if err := service.Finalize(context.Background(), reservation.ReservationID, "doc-1"); err != nil {
		test.Fatalf("finalize: %v", err)
	}
	stored := store.reservations[reservation.ReservationID]
	if stored.Status != StatusFinalized || stored.DocumentID != "doc-1" {
		test.Fatalf("unexpected reservation state: %+v", stored)
	}
}

func TestFinalizeIsIdempotentForSameDocument(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	reservation := mustReserve(test, service, KindInvoice)

	if err := service.Finalize(context.Background(), reservation.ReservationID, "doc-1"); err != nil {
		test.Fatalf("first finalize: %v", err)
	}
	if err := service.Finalize(context.Background(), reservation.ReservationID, "doc-1"); err != nil {
		test.Fatalf("repeated finalize: %v", err)
	}
	err := service.Finalize(context.Background(), reservation.ReservationID, "doc-2")
	if !errors.Is(err, ErrDocumentMismatch) {
		test.Fatalf("expected ErrDocumentMismatch, got %v", err)
	}
}

func TestFinalizeRejectsEmptyDocumentID(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	reservation := mustReserve(test, service, KindInvoice)

	err := service.Finalize(context.Background(), reservation.ReservationID, "   ")
	if !errors.Is(err, ErrInvalidDocumentID) {
		test.Fatalf("expected ErrInvalidDocumentID, got %v", err)
	}
}

func TestFinalizeAfterRelease(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	reservation := mustReserve(test, service, KindInvoice)

	if _, err := service.Release(context.Background(), reservation.ReservationID); err != nil {
		test.Fatalf("release: %v", err)
	}
	err := service.Finalize(context.Background(), reservation.ReservationID, "doc-1")
	if !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFinalizeUnknownReservation(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	err := service.Finalize(context.Background(), "missing", "doc-1")
	if !errors.Is(err, ErrUnknownReservation) {
		test.Fatalf("expected ErrUnknownReservation, got %v", err)
	}
}

func TestReleaseTailReclaimsValue(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(5))
	service := mustNewService(test, store)
	reservation := mustReserve(test, service, KindInvoice)

	result, err := service.Release(context.Background(), reservation.ReservationID)
	if err != nil {
		test.Fatalf("release: %v", err)
	}
	if !result.Reclaimed {
		test.Fatalf("expected tail release to reclaim the value")
	}
	if result.NumberBurned {
		test.Fatalf("reclaimed value must not report as burned")
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 5 {
		test.Fatalf("expected counter back at 5, got %d", state.NextValue)
	}
	next := mustReserve(test, service, KindInvoice)
	if next.CounterValue != 5 {
		test.Fatalf("expected reclaimed value 5 reissued, got %d", next.CounterValue)
	}
}

func TestReleaseNonTailBurnsValue(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(5))
	service := mustNewService(test, store)
	five := mustReserve(test, service, KindInvoice)
	six := mustReserve(test, service, KindInvoice)

	result, err := service.Release(context.Background(), five.ReservationID)
	if err != nil {
		test.Fatalf("release: %v", err)
	}
	if result.Reclaimed {
		test.Fatalf("non-tail release must not roll back the counter")
	}
	if !result.NumberBurned {
		test.Fatalf("expected burned number to be reported")
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 7 {
		test.Fatalf("expected counter untouched at 7, got %d", state.NextValue)
	}
	if err := service.Finalize(context.Background(), six.ReservationID, "doc-6"); err != nil {
		test.Fatalf("finalizing the surviving reservation: %v", err)
	}
}

func TestReleaseHidesBurnedNumbersWhenConfigured(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(5))
	service := mustNewService(test, store, WithBurnedNumberVisibility(false))
	five := mustReserve(test, service, KindInvoice)
	mustReserve(test, service, KindInvoice)

	result, err := service.Release(context.Background(), five.ReservationID)
	if err != nil {
		test.Fatalf("release: %v", err)
	}
	if result.Reclaimed || result.NumberBurned {
		test.Fatalf("expected suppressed burn indicator, got %+v", result)
	}
}

func TestReleaseIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(5))
	service := mustNewService(test, store)
	reservation := mustReserve(test, service, KindInvoice)

	if _, err := service.Release(context.Background(), reservation.ReservationID); err != nil {
		test.Fatalf("first release: %v", err)
	}
	if _, err := service.Release(context.Background(), reservation.ReservationID); err != nil {
		test.Fatalf("repeated release: %v", err)
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 5 {
		test.Fatalf("repeated release moved the counter: %d", state.NextValue)
	}
}

func TestReleaseAfterFinalize(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	reservation := mustReserve(test, service, KindInvoice)

	if err := service.Finalize(context.Background(), reservation.ReservationID, "doc-1"); err != nil {
		test.Fatalf("finalize: %v", err)
	}
	_, err := service.Release(context.Background(), reservation.ReservationID)
	if !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReserveFailureRollsBackCounter(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(5))
	store.createErr = fmt.Errorf("reservation table unavailable")
	service := mustNewService(test, store)

	if _, err := service.Reserve(context.Background(), KindInvoice); err == nil {
		test.Fatalf("expected reserve failure")
	}
	store.createErr = nil
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 5 {
		test.Fatalf("failed reserve consumed a value: next %d", state.NextValue)
	}
}

func TestSetFormatOnlyChangesFormatting(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(42))
	service := mustNewService(test, store)

	if err := service.SetFormat(context.Background(), KindInvoice, "INV/%Y/", 6); err != nil {
		test.Fatalf("set format: %v", err)
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 42 {
		test.Fatalf("set format moved the counter: %d", state.NextValue)
	}
	if state.PrefixTemplate != "INV/%Y/" || state.PadWidth != 6 {
		test.Fatalf("format not applied: %+v", state)
	}
	reservation := mustReserve(test, service, KindInvoice)
	if reservation.FormattedNumber != "INV/2026/000042" {
		test.Fatalf("expected INV/2026/000042, got %q", reservation.FormattedNumber)
	}
}

func TestSetFormatValidation(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(invoiceCounterAt(1)))
	if err := service.SetFormat(context.Background(), KindInvoice, "RE-", 0); !errors.Is(err, ErrInvalidCounterState) {
		test.Fatalf("expected ErrInvalidCounterState, got %v", err)
	}
	if err := service.SetFormat(context.Background(), KindOffer, "AN-", 3); !errors.Is(err, ErrUnknownKind) {
		test.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestEnsureCounterCreatesOnlyWhenAbsent(test *testing.T) {
	test.Parallel()
	store := newStubStore(invoiceCounterAt(99))
	service := mustNewService(test, store)

	if err := service.EnsureCounter(context.Background(), invoiceCounterAt(1)); err != nil {
		test.Fatalf("ensure existing: %v", err)
	}
	state, err := service.Peek(context.Background(), KindInvoice)
	if err != nil {
		test.Fatalf("peek: %v", err)
	}
	if state.NextValue != 99 {
		test.Fatalf("ensure lowered an existing counter: %d", state.NextValue)
	}

	offer := CounterState{Kind: KindOffer, NextValue: 1, PrefixTemplate: "AN-%Y-", PadWidth: 4}
	if err := service.EnsureCounter(context.Background(), offer); err != nil {
		test.Fatalf("ensure new: %v", err)
	}
	created, err := service.Peek(context.Background(), KindOffer)
	if err != nil {
		test.Fatalf("peek offer: %v", err)
	}
	if created.PrefixTemplate != "AN-%Y-" {
		test.Fatalf("unexpected created counter: %+v", created)
	}
}

func TestEnsureCounterValidation(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	err := service.EnsureCounter(context.Background(), CounterState{Kind: KindInvoice, NextValue: 0, PadWidth: 3})
	if !errors.Is(err, ErrInvalidCounterState) {
		test.Fatalf("expected ErrInvalidCounterState, got %v", err)
	}
	err = service.EnsureCounter(context.Background(), CounterState{Kind: "purchase", NextValue: 1, PadWidth: 3})
	if !errors.Is(err, ErrUnknownKind) {
		test.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseKindNormalizes(test *testing.T) {
	test.Parallel()
	kind, err := ParseKind("  Invoice ")
	if err != nil {
		test.Fatalf("parse kind: %v", err)
	}
	if kind != KindInvoice {
		test.Fatalf("expected invoice, got %s", kind)
	}
	if _, err := ParseKind("purchase"); !errors.Is(err, ErrUnknownKind) {
		test.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestNewServiceRejectsNilDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, fixedClock(0)); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil store, got %v", err)
	}
	if _, err := NewService(newStubStore(), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil clock, got %v", err)
	}
}
