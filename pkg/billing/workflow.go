package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

// CreateInvoiceWithNumber runs the document-creation workflow: reserve a
// number, persist the invoice together with its audit entry, finalize the
// reservation. The reservation is released when the persist step fails.
//
// Lock ordering is fixed across all call paths: the counter transaction
// commits before the entity transaction touches the ledger head, so counter
// locks are never held while waiting on the ledger and vice versa.
func (repository *Repository) CreateInvoiceWithNumber(ctx context.Context, draft Invoice, reason string) (Invoice, error) {
	reservation, err := repository.numbers.Reserve(ctx, numbering.KindInvoice)
	if err != nil {
		return Invoice{}, err
	}
	if draft.InvoiceID == "" {
		draft.InvoiceID = uuid.NewString()
	}
	draft.Number = reservation.FormattedNumber
	if _, err := repository.UpsertInvoice(ctx, draft, reason); err != nil {
		if _, releaseErr := repository.numbers.Release(ctx, reservation.ReservationID); releaseErr != nil {
			return Invoice{}, fmt.Errorf("persist failed (%v), release failed: %w", err, releaseErr)
		}
		return Invoice{}, err
	}
	if err := repository.numbers.Finalize(ctx, reservation.ReservationID, draft.InvoiceID); err != nil {
		return Invoice{}, err
	}
	return draft, nil
}

// CreateOfferWithNumber mirrors CreateInvoiceWithNumber for offers.
func (repository *Repository) CreateOfferWithNumber(ctx context.Context, draft Offer, reason string) (Offer, error) {
	reservation, err := repository.numbers.Reserve(ctx, numbering.KindOffer)
	if err != nil {
		return Offer{}, err
	}
	if draft.OfferID == "" {
		draft.OfferID = uuid.NewString()
	}
	draft.Number = reservation.FormattedNumber
	if _, err := repository.UpsertOffer(ctx, draft, reason); err != nil {
		if _, releaseErr := repository.numbers.Release(ctx, reservation.ReservationID); releaseErr != nil {
			return Offer{}, fmt.Errorf("persist failed (%v), release failed: %w", err, releaseErr)
		}
		return Offer{}, err
	}
	if err := repository.numbers.Finalize(ctx, reservation.ReservationID, draft.OfferID); err != nil {
		return Offer{}, err
	}
	return draft, nil
}
