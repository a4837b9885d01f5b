package audit

import (
	"context"
	"fmt"
	"strings"
)

// Service contains the ledger domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Append records one mutation as a new chain entry in its own transaction.
func (service *Service) Append(ctx context.Context, input AppendInput) (Entry, error) {
	var appended Entry
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		entry, err := service.AppendIn(ctx, transactionStore, input)
		if err != nil {
			return err
		}
		appended = entry
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationAppend,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Action:     input.Action.Name(),
		Sequence:   appended.Sequence,
		Error:      operationError,
	})
	return appended, operationError
}

// AppendIn records the mutation on a caller-managed transactional store, so
// the entity write and its audit entry commit or roll back together. The head
// read and the insert happen under the same transaction; the store's unique
// sequence constraint is the backstop against concurrent appends.
func (service *Service) AppendIn(ctx context.Context, transactionStore Store, input AppendInput) (Entry, error) {
	if strings.TrimSpace(input.EntityType) == "" {
		return Entry{}, fmt.Errorf("%w: empty entity type", ErrInvalidEntityRef)
	}
	if strings.TrimSpace(input.EntityID) == "" {
		return Entry{}, fmt.Errorf("%w: empty entity id", ErrInvalidEntityRef)
	}
	if input.Action.Name() == "" {
		return Entry{}, fmt.Errorf("%w: zero action", ErrInvalidAction)
	}

	prevHash := GenesisHash
	sequence := firstSequence
	head, hasHead, err := transactionStore.Head(ctx)
	if err != nil {
		return Entry{}, err
	}
	if hasHead {
		prevHash = head.Hash
		sequence = head.Sequence + 1
	}

	entry := Entry{
		Sequence:        sequence,
		RecordedUnixUTC: service.nowFn(),
		EntityType:      strings.TrimSpace(input.EntityType),
		EntityID:        strings.TrimSpace(input.EntityID),
		Action:          input.Action,
		BeforeSnapshot:  input.BeforeSnapshot,
		AfterSnapshot:   input.AfterSnapshot,
		PrevHash:        prevHash,
	}
	entry.Hash = ComputeHash(prevHash, hashFieldsOf(entry))

	if err := transactionStore.InsertEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Verify replays the whole chain and reports every defect it finds: hash
// mismatches, broken prevHash links, and sequence gaps. A corrupted ledger is
// localized, not just flagged.
func (service *Service) Verify(ctx context.Context) (Report, error) {
	entries, err := service.store.ListEntries(ctx, Filter{})
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationVerify, Error: err})
		return Report{}, err
	}

	report := Report{Errors: []VerifyError{}, HeadHash: GenesisHash}
	expectedPrevHash := GenesisHash
	expectedSequence := firstSequence
	for _, entry := range entries {
		if entry.Sequence != expectedSequence {
			report.Errors = append(report.Errors, VerifyError{
				Sequence:    entry.Sequence,
				Description: fmt.Sprintf("sequence gap: expected %d, found %d", expectedSequence, entry.Sequence),
			})
		}
		if entry.PrevHash != expectedPrevHash {
			report.Errors = append(report.Errors, VerifyError{
				Sequence:    entry.Sequence,
				Description: fmt.Sprintf("prev hash mismatch: expected %s, found %s", expectedPrevHash, entry.PrevHash),
			})
		}
		recomputed := ComputeHash(entry.PrevHash, hashFieldsOf(entry))
		if recomputed != entry.Hash {
			report.Errors = append(report.Errors, VerifyError{
				Sequence:    entry.Sequence,
				Description: fmt.Sprintf("hash mismatch: recomputed %s, stored %s", recomputed, entry.Hash),
			})
		}
		// Continue from the stored values so a single defect does not
		// cascade into an error on every later entry.
		expectedPrevHash = entry.Hash
		expectedSequence = entry.Sequence + 1
	}
	report.Count = int64(len(entries))
	if len(entries) > 0 {
		report.HeadHash = entries[len(entries)-1].Hash
	}
	report.OK = len(report.Errors) == 0

	service.logOperation(ctx, OperationLog{Operation: operationVerify, Sequence: report.Count})
	return report, nil
}

// Export lists entries chronologically, optionally filtered by entity. It is
// read-only and serializes losslessly to the compliance review table.
func (service *Service) Export(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := service.store.ListEntries(ctx, filter)
	service.logOperation(ctx, OperationLog{
		Operation:  operationExport,
		EntityType: filter.EntityType,
		EntityID:   filter.EntityID,
		Error:      err,
	})
	return entries, err
}

// Head returns the current head hash without mutating anything.
func (service *Service) Head(ctx context.Context) (string, error) {
	head, hasHead, err := service.store.Head(ctx)
	if err != nil {
		return "", err
	}
	if !hasHead {
		return GenesisHash, nil
	}
	return head.Hash, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
