// Package gormstore persists the numbering, audit, and billing contracts on
// one gorm.DB handle so the repository can run all three concerns inside a
// single transaction.
package gormstore

import (
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/billing"
	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
	"github.com/MarkoPoloResearchLab/docledger/pkg/operr"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectCounter     = "counter"
	errorSubjectReservation = "reservation"
	errorSubjectEntry       = "audit_entry"
	errorSubjectInvoice     = "invoice"
	errorSubjectOffer       = "offer"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeSave           = "save"
	errorCodeUpdate         = "update"
)

// Store bundles the per-contract stores over one database handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Numbering returns the counter/reservation store contract.
func (store *Store) Numbering() numbering.Store {
	return &numberingStore{db: store.db}
}

// Audit returns the append-only ledger store contract.
func (store *Store) Audit() audit.Store {
	return &auditStore{db: store.db}
}

// Billing returns the entity store contract.
func (store *Store) Billing() billing.Store {
	return &billingStore{db: store.db}
}

func wrapStoreError(subject string, code string, err error) error {
	return operr.Wrap(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
