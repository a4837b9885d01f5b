package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
)

// Entity type labels recorded in the audit trail.
const (
	EntityTypeInvoice = "invoice"
	EntityTypeOffer   = "offer"
)

// Invoice is a ledger-backed document. Number is assigned through the
// reservation workflow and never edited in place.
type Invoice struct {
	InvoiceID     string          `json:"invoice_id"`
	Number        string          `json:"number"`
	CustomerID    string          `json:"customer_id"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	IssuedUnixUTC int64           `json:"issued_unix_utc"`
	Notes         string          `json:"notes,omitempty"`
}

// Offer is a ledger-backed document that may later convert into an invoice.
type Offer struct {
	OfferID         string          `json:"offer_id"`
	Number          string          `json:"number"`
	CustomerID      string          `json:"customer_id"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	ValidUntilUnix  int64           `json:"valid_until_unix_utc"`
	Notes           string          `json:"notes,omitempty"`
}

// Store is the persistence contract used by Repository. AuditStore exposes
// the same transaction handle scoped to the audit contract so the entity
// write and the audit append commit or roll back together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	AuditStore() audit.Store
	GetInvoice(ctx context.Context, invoiceID string) (Invoice, bool, error)
	SaveInvoice(ctx context.Context, invoice Invoice) error
	DeleteInvoice(ctx context.Context, invoiceID string) error
	GetOffer(ctx context.Context, offerID string) (Offer, bool, error)
	SaveOffer(ctx context.Context, offer Offer) error
	DeleteOffer(ctx context.Context, offerID string) error
}
