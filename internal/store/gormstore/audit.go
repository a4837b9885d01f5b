package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
)

type auditStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *auditStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore audit.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &auditStore{db: transaction})
	})
}

// Head returns the highest-sequence entry under a row lock, serializing
// concurrent appends on the single linear history.
func (store *auditStore) Head(ctx context.Context) (audit.Entry, bool, error) {
	var model AuditEntryRow
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("sequence DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return audit.Entry{}, false, nil
		}
		return audit.Entry{}, false, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	entry, err := mapAuditEntry(model)
	if err != nil {
		return audit.Entry{}, false, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entry, true, nil
}

// InsertEntry appends one entry. The unique sequence constraint is the
// backstop against concurrent appends; a violation surfaces as an integrity
// error, not a validation error.
func (store *auditStore) InsertEntry(ctx context.Context, entry audit.Entry) error {
	model := AuditEntryRow{
		Sequence:       entry.Sequence,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Action:         entry.Action.Name(),
		Reason:         entry.Action.Reason(),
		SystemAction:   entry.Action.IsSystem(),
		BeforeSnapshot: snapshotColumn(entry.BeforeSnapshot),
		AfterSnapshot:  snapshotColumn(entry.AfterSnapshot),
		PrevHash:       entry.PrevHash,
		Hash:           entry.Hash,
		RecordedAt:     time.Unix(entry.RecordedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, audit.ErrSequenceConflict)
	}
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

func (store *auditStore) ListEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	query := store.db.WithContext(ctx).Model(&AuditEntryRow{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	order := "sequence ASC"
	if filter.Descending {
		order = "sequence DESC"
	}
	query = query.Order(order)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []AuditEntryRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapAuditEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapAuditEntry(row AuditEntryRow) (audit.Entry, error) {
	action, err := audit.RestoreAction(row.Action, row.Reason, row.SystemAction)
	if err != nil {
		return audit.Entry{}, err
	}
	before, err := audit.ParseSnapshot(string(row.BeforeSnapshot))
	if err != nil {
		return audit.Entry{}, err
	}
	after, err := audit.ParseSnapshot(string(row.AfterSnapshot))
	if err != nil {
		return audit.Entry{}, err
	}
	return audit.Entry{
		Sequence:        row.Sequence,
		RecordedUnixUTC: row.RecordedAt.Unix(),
		EntityType:      row.EntityType,
		EntityID:        row.EntityID,
		Action:          action,
		BeforeSnapshot:  before,
		AfterSnapshot:   after,
		PrevHash:        row.PrevHash,
		Hash:            row.Hash,
	}, nil
}

func snapshotColumn(snapshot audit.Snapshot) datatypes.JSON {
	if snapshot.IsAbsent() {
		return nil
	}
	return datatypes.JSON([]byte(snapshot.String()))
}
