package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

// Action labels recorded per mutation.
const (
	actionInvoiceCreate = "invoice.create"
	actionInvoiceUpdate = "invoice.update"
	actionInvoiceDelete = "invoice.delete"
	actionOfferCreate   = "offer.create"
	actionOfferUpdate   = "offer.update"
	actionOfferDelete   = "offer.delete"
)

// Repository is the only legitimate mutation path for ledger-backed entities.
// Every write runs in one transaction: validate reason, capture the before
// snapshot, mutate, capture the after snapshot, append exactly one audit
// entry. Any failure rolls the whole transaction back.
type Repository struct {
	store   Store
	ledger  *audit.Service
	numbers *numbering.Service
}

// NewRepository wires a Repository.
func NewRepository(store Store, ledger *audit.Service, numbers *numbering.Service) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if numbers == nil {
		return nil, fmt.Errorf("%w: numbering dependency is nil", ErrInvalidServiceConfig)
	}
	return &Repository{store: store, ledger: ledger, numbers: numbers}, nil
}

// UpsertInvoice creates or updates an invoice and appends one audit entry.
func (repository *Repository) UpsertInvoice(ctx context.Context, invoice Invoice, reason string) (audit.Entry, error) {
	if err := validateReason(reason); err != nil {
		return audit.Entry{}, err
	}
	if strings.TrimSpace(invoice.InvoiceID) == "" {
		return audit.Entry{}, fmt.Errorf("%w: empty invoice id", ErrInvalidEntity)
	}
	var appended audit.Entry
	err := repository.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, exists, err := transactionStore.GetInvoice(ctx, invoice.InvoiceID)
		if err != nil {
			return err
		}
		actionName := actionInvoiceCreate
		before := audit.Snapshot{}
		if exists {
			actionName = actionInvoiceUpdate
			before, err = audit.NewSnapshot(current)
			if err != nil {
				return err
			}
		}
		action, err := audit.UserAction(actionName, reason)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		after, err := audit.NewSnapshot(invoice)
		if err != nil {
			return err
		}
		appended, err = repository.ledger.AppendIn(ctx, transactionStore.AuditStore(), audit.AppendInput{
			EntityType:     EntityTypeInvoice,
			EntityID:       invoice.InvoiceID,
			Action:         action,
			BeforeSnapshot: before,
			AfterSnapshot:  after,
		})
		return err
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return appended, nil
}

// DeleteInvoice removes an invoice and appends one audit entry with a null
// after snapshot.
func (repository *Repository) DeleteInvoice(ctx context.Context, invoiceID string, reason string) (audit.Entry, error) {
	if err := validateReason(reason); err != nil {
		return audit.Entry{}, err
	}
	var appended audit.Entry
	err := repository.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, exists, err := transactionStore.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
		}
		before, err := audit.NewSnapshot(current)
		if err != nil {
			return err
		}
		action, err := audit.UserAction(actionInvoiceDelete, reason)
		if err != nil {
			return err
		}
		if err := transactionStore.DeleteInvoice(ctx, invoiceID); err != nil {
			return err
		}
		appended, err = repository.ledger.AppendIn(ctx, transactionStore.AuditStore(), audit.AppendInput{
			EntityType:     EntityTypeInvoice,
			EntityID:       invoiceID,
			Action:         action,
			BeforeSnapshot: before,
		})
		return err
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return appended, nil
}

// GetInvoice reads an invoice without touching the ledger.
func (repository *Repository) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	invoice, exists, err := repository.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if !exists {
		return Invoice{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	return invoice, nil
}

// UpsertOffer creates or updates an offer and appends one audit entry.
func (repository *Repository) UpsertOffer(ctx context.Context, offer Offer, reason string) (audit.Entry, error) {
	if err := validateReason(reason); err != nil {
		return audit.Entry{}, err
	}
	if strings.TrimSpace(offer.OfferID) == "" {
		return audit.Entry{}, fmt.Errorf("%w: empty offer id", ErrInvalidEntity)
	}
	var appended audit.Entry
	err := repository.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, exists, err := transactionStore.GetOffer(ctx, offer.OfferID)
		if err != nil {
			return err
		}
		actionName := actionOfferCreate
		before := audit.Snapshot{}
		if exists {
			actionName = actionOfferUpdate
			before, err = audit.NewSnapshot(current)
			if err != nil {
				return err
			}
		}
		action, err := audit.UserAction(actionName, reason)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveOffer(ctx, offer); err != nil {
			return err
		}
		after, err := audit.NewSnapshot(offer)
		if err != nil {
			return err
		}
		appended, err = repository.ledger.AppendIn(ctx, transactionStore.AuditStore(), audit.AppendInput{
			EntityType:     EntityTypeOffer,
			EntityID:       offer.OfferID,
			Action:         action,
			BeforeSnapshot: before,
			AfterSnapshot:  after,
		})
		return err
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return appended, nil
}

// DeleteOffer removes an offer and appends one audit entry.
func (repository *Repository) DeleteOffer(ctx context.Context, offerID string, reason string) (audit.Entry, error) {
	if err := validateReason(reason); err != nil {
		return audit.Entry{}, err
	}
	var appended audit.Entry
	err := repository.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, exists, err := transactionStore.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
		}
		before, err := audit.NewSnapshot(current)
		if err != nil {
			return err
		}
		action, err := audit.UserAction(actionOfferDelete, reason)
		if err != nil {
			return err
		}
		if err := transactionStore.DeleteOffer(ctx, offerID); err != nil {
			return err
		}
		appended, err = repository.ledger.AppendIn(ctx, transactionStore.AuditStore(), audit.AppendInput{
			EntityType:     EntityTypeOffer,
			EntityID:       offerID,
			Action:         action,
			BeforeSnapshot: before,
		})
		return err
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return appended, nil
}

// GetOffer reads an offer without touching the ledger.
func (repository *Repository) GetOffer(ctx context.Context, offerID string) (Offer, error) {
	offer, exists, err := repository.store.GetOffer(ctx, offerID)
	if err != nil {
		return Offer{}, err
	}
	if !exists {
		return Offer{}, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
	}
	return offer, nil
}

// validateReason rejects empty reasons before any state is touched, so a
// failed validation leaves the counter, the entity tables, and the ledger
// unchanged.
func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: reason is required for manual mutations", audit.ErrEmptyReason)
	}
	return nil
}
