package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
)

// NumberCounter mirrors the number_counters table: one row per kind.
type NumberCounter struct {
	Kind           string    `gorm:"primaryKey;size:32"`
	NextValue      int64     `gorm:"not null"`
	PrefixTemplate string    `gorm:"not null"`
	PadWidth       int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (NumberCounter) TableName() string { return "number_counters" }

// NumberReservation mirrors the number_reservations table. Rows are terminal
// records of issuance and are never deleted. (kind, counter_value) is not
// unique on purpose: a reclaimed value is legitimately issued again to a
// fresh reservation after the old one went terminal.
type NumberReservation struct {
	ReservationID   string    `gorm:"type:uuid;primaryKey"`
	Kind            string    `gorm:"size:32;not null;index:idx_number_reservations_kind_value,priority:1"`
	CounterValue    int64     `gorm:"not null;index:idx_number_reservations_kind_value,priority:2"`
	FormattedNumber string    `gorm:"not null"`
	Status          string    `gorm:"size:16;not null"`
	DocumentID      *string   `gorm:"index"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (NumberReservation) TableName() string { return "number_reservations" }

func (reservation *NumberReservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ReservationID == "" {
		reservation.ReservationID = uuid.NewString()
	}
	return nil
}

// AuditEntryRow mirrors the append-only audit_entries table. Sequence is
// assigned by the ledger service, never by the database.
type AuditEntryRow struct {
	Sequence       int64          `gorm:"primaryKey;autoIncrement:false"`
	EntityType     string         `gorm:"size:64;not null;index:idx_audit_entries_entity,priority:1"`
	EntityID       string         `gorm:"size:64;not null;index:idx_audit_entries_entity,priority:2"`
	Action         string         `gorm:"size:64;not null"`
	Reason         string         `gorm:""`
	SystemAction   bool           `gorm:"not null"`
	BeforeSnapshot datatypes.JSON `gorm:""`
	AfterSnapshot  datatypes.JSON `gorm:""`
	PrevHash       string         `gorm:"size:64;not null"`
	Hash           string         `gorm:"size:64;not null"`
	RecordedAt     time.Time      `gorm:"not null"`
}

func (AuditEntryRow) TableName() string { return "audit_entries" }

// The chain is append-only: the model itself refuses updates and deletes so
// no code path can mutate history through this store.
func (AuditEntryRow) BeforeUpdate(tx *gorm.DB) error { return audit.ErrImmutableEntry }
func (AuditEntryRow) BeforeDelete(tx *gorm.DB) error { return audit.ErrImmutableEntry }

// InvoiceRow mirrors the invoices table.
type InvoiceRow struct {
	InvoiceID  string          `gorm:"type:uuid;primaryKey"`
	Number     string          `gorm:"not null;uniqueIndex"`
	CustomerID string          `gorm:"not null;index"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency   string          `gorm:"size:3;not null"`
	IssuedAt   time.Time       `gorm:"not null"`
	Notes      string          `gorm:""`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

func (InvoiceRow) TableName() string { return "invoices" }

// OfferRow mirrors the offers table.
type OfferRow struct {
	OfferID    string          `gorm:"type:uuid;primaryKey"`
	Number     string          `gorm:"not null;uniqueIndex"`
	CustomerID string          `gorm:"not null;index"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency   string          `gorm:"size:3;not null"`
	ValidUntil time.Time       `gorm:"not null"`
	Notes      string          `gorm:""`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

func (OfferRow) TableName() string { return "offers" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&NumberCounter{},
		&NumberReservation{},
		&AuditEntryRow{},
		&InvoiceRow{},
		&OfferRow{},
	}
}
