package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/billing"
)

type billingStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *billingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore billing.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &billingStore{db: transaction})
	})
}

// AuditStore exposes the ledger contract on the same transaction handle.
func (store *billingStore) AuditStore() audit.Store {
	return &auditStore{db: store.db}
}

func (store *billingStore) GetInvoice(ctx context.Context, invoiceID string) (billing.Invoice, bool, error) {
	var model InvoiceRow
	err := store.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Invoice{}, false, nil
		}
		return billing.Invoice{}, false, wrapStoreError(errorSubjectInvoice, errorCodeGet, err)
	}
	return billing.Invoice{
		InvoiceID:     model.InvoiceID,
		Number:        model.Number,
		CustomerID:    model.CustomerID,
		Total:         model.Total,
		Currency:      model.Currency,
		IssuedUnixUTC: model.IssuedAt.Unix(),
		Notes:         model.Notes,
	}, true, nil
}

func (store *billingStore) SaveInvoice(ctx context.Context, invoice billing.Invoice) error {
	model := InvoiceRow{
		InvoiceID:  invoice.InvoiceID,
		Number:     invoice.Number,
		CustomerID: invoice.CustomerID,
		Total:      invoice.Total,
		Currency:   invoice.Currency,
		IssuedAt:   time.Unix(invoice.IssuedUnixUTC, 0).UTC(),
		Notes:      invoice.Notes,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectInvoice, errorCodeSave, err)
	}
	return nil
}

func (store *billingStore) DeleteInvoice(ctx context.Context, invoiceID string) error {
	result := store.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&InvoiceRow{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectInvoice, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectInvoice, errorCodeDelete, billing.ErrInvoiceNotFound)
	}
	return nil
}

func (store *billingStore) GetOffer(ctx context.Context, offerID string) (billing.Offer, bool, error) {
	var model OfferRow
	err := store.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Offer{}, false, nil
		}
		return billing.Offer{}, false, wrapStoreError(errorSubjectOffer, errorCodeGet, err)
	}
	return billing.Offer{
		OfferID:        model.OfferID,
		Number:         model.Number,
		CustomerID:     model.CustomerID,
		Total:          model.Total,
		Currency:       model.Currency,
		ValidUntilUnix: model.ValidUntil.Unix(),
		Notes:          model.Notes,
	}, true, nil
}

func (store *billingStore) SaveOffer(ctx context.Context, offer billing.Offer) error {
	model := OfferRow{
		OfferID:    offer.OfferID,
		Number:     offer.Number,
		CustomerID: offer.CustomerID,
		Total:      offer.Total,
		Currency:   offer.Currency,
		ValidUntil: time.Unix(offer.ValidUntilUnix, 0).UTC(),
		Notes:      offer.Notes,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "offer_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectOffer, errorCodeSave, err)
	}
	return nil
}

func (store *billingStore) DeleteOffer(ctx context.Context, offerID string) error {
	result := store.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Delete(&OfferRow{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOffer, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOffer, errorCodeDelete, billing.ErrOfferNotFound)
	}
	return nil
}
