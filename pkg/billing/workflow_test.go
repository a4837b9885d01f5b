package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

func invoiceCounter() numbering.CounterState {
	return numbering.CounterState{Kind: numbering.KindInvoice, NextValue: 104, PrefixTemplate: "RE-%Y-", PadWidth: 3}
}

func offerCounter() numbering.CounterState {
	return numbering.CounterState{Kind: numbering.KindOffer, NextValue: 1, PrefixTemplate: "AN-%Y-", PadWidth: 4}
}

func TestCreateInvoiceWithNumberFinalizesReservation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	numberStore := newStubNumberStore(invoiceCounter())
	repository := mustRepository(test, store, numberStore)

	invoice, err := repository.CreateInvoiceWithNumber(context.Background(), Invoice{
		CustomerID: "cust-1",
		Total:      decimal.RequireFromString("250.00"),
		Currency:   "EUR",
	}, "monthly billing run")
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if invoice.Number != "RE-2026-104" {
		test.Fatalf("expected RE-2026-104, got %q", invoice.Number)
	}
	if invoice.InvoiceID == "" {
		test.Fatalf("expected a generated invoice id")
	}
	stored, exists := store.invoices[invoice.InvoiceID]
	if !exists || stored.Number != invoice.Number {
		test.Fatalf("invoice not persisted with its number")
	}
	if len(numberStore.reservations) != 1 {
		test.Fatalf("expected 1 reservation, got %d", len(numberStore.reservations))
	}
	for _, reservation := range numberStore.reservations {
		if reservation.Status != numbering.StatusFinalized {
			test.Fatalf("expected finalized reservation, got %s", reservation.Status)
		}
		if reservation.DocumentID != invoice.InvoiceID {
			test.Fatalf("reservation bound to %q, not the invoice", reservation.DocumentID)
		}
	}
	if numberStore.counters[numbering.KindInvoice].NextValue != 105 {
		test.Fatalf("counter did not advance")
	}
	if len(store.auditEntries) != 1 {
		test.Fatalf("expected exactly one audit entry, got %d", len(store.auditEntries))
	}
}

func TestCreateInvoiceWithNumberReleasesOnPersistFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.saveInvoiceErr = fmt.Errorf("entity table unavailable")
	numberStore := newStubNumberStore(invoiceCounter())
	repository := mustRepository(test, store, numberStore)

	_, err := repository.CreateInvoiceWithNumber(context.Background(), Invoice{
		CustomerID: "cust-1",
		Total:      decimal.RequireFromString("10.00"),
		Currency:   "EUR",
	}, "monthly billing run")
	if err == nil {
		test.Fatalf("expected failure when persisting the invoice fails")
	}
	if numberStore.counters[numbering.KindInvoice].NextValue != 104 {
		test.Fatalf("failed create consumed a number: next %d", numberStore.counters[numbering.KindInvoice].NextValue)
	}
	for _, reservation := range numberStore.reservations {
		if reservation.Status != numbering.StatusReleased {
			test.Fatalf("expected released reservation, got %s", reservation.Status)
		}
	}
	if len(store.auditEntries) != 0 {
		test.Fatalf("failed create left %d audit entries", len(store.auditEntries))
	}
}

func TestCreateInvoiceWithNumberRejectsEmptyReasonBeforeReserving(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	numberStore := newStubNumberStore(invoiceCounter())
	repository := mustRepository(test, store, numberStore)

	_, err := repository.CreateInvoiceWithNumber(context.Background(), Invoice{CustomerID: "cust-1"}, "")
	if err == nil {
		test.Fatalf("expected empty reason rejection")
	}
	if numberStore.counters[numbering.KindInvoice].NextValue != 104 {
		test.Fatalf("rejected create moved the counter")
	}
	for _, reservation := range numberStore.reservations {
		if reservation.Status != numbering.StatusReleased {
			test.Fatalf("expected the provisional reservation released, got %s", reservation.Status)
		}
	}
}

func TestCreateOfferWithNumber(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	numberStore := newStubNumberStore(offerCounter())
	repository := mustRepository(test, store, numberStore)

	offer, err := repository.CreateOfferWithNumber(context.Background(), Offer{
		CustomerID: "cust-2",
		Total:      decimal.RequireFromString("75.00"),
		Currency:   "EUR",
	}, "quote requested")
	if err != nil {
		test.Fatalf("create offer: %v", err)
	}
	if offer.Number != "AN-2026-0001" {
		test.Fatalf("expected AN-2026-0001, got %q", offer.Number)
	}
	if _, exists := store.offers[offer.OfferID]; !exists {
		test.Fatalf("offer not persisted")
	}
}
