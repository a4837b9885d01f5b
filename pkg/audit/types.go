package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Snapshot is a canonically encoded structured value: JSON with
// deterministically ordered object keys, so hashing is stable across
// processes and versions. The zero Snapshot means "absent" (null before-state
// on create, null after-state on delete).
type Snapshot struct {
	value string
}

// NewSnapshot canonicalizes an arbitrary value. Passing nil yields the absent
// snapshot.
func NewSnapshot(value any) (Snapshot, error) {
	if value == nil {
		return Snapshot{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return canonicalizeJSON(raw)
}

// ParseSnapshot restores a snapshot from its stored encoding. Empty input
// yields the absent snapshot.
func ParseSnapshot(raw string) (Snapshot, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Snapshot{}, nil
	}
	return canonicalizeJSON([]byte(trimmed))
}

// canonicalizeJSON round-trips through an untyped value so encoding/json
// re-marshals object keys in sorted order at every nesting level.
func canonicalizeJSON(raw []byte) (Snapshot, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return Snapshot{value: string(canonical)}, nil
}

// String returns the canonical encoding, or "" for the absent snapshot.
func (snapshot Snapshot) String() string {
	return snapshot.value
}

// IsAbsent reports whether the snapshot carries no value.
func (snapshot Snapshot) IsAbsent() bool {
	return snapshot.value == ""
}

// Action tags a mutation with its origin. User actions require a non-empty
// reason; system actions are exempt. The exemption is enforced here, by the
// constructors, not by string matching at append time.
type Action struct {
	name   string
	reason string
	system bool
}

// UserAction builds an operator-initiated action with a mandatory reason.
func UserAction(name string, reason string) (Action, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Action{}, fmt.Errorf("%w: empty name", ErrInvalidAction)
	}
	trimmedReason := strings.TrimSpace(reason)
	if trimmedReason == "" {
		return Action{}, fmt.Errorf("%w: action %q", ErrEmptyReason, trimmedName)
	}
	return Action{name: trimmedName, reason: trimmedReason}, nil
}

// SystemAction builds an automation-initiated action; no reason is required.
func SystemAction(name string) (Action, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Action{}, fmt.Errorf("%w: empty name", ErrInvalidAction)
	}
	return Action{name: trimmedName, system: true}, nil
}

// RestoreAction rebuilds an action from storage without re-validating the
// reason rule (persisted system entries legitimately carry no reason).
func RestoreAction(name string, reason string, system bool) (Action, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Action{}, fmt.Errorf("%w: empty name", ErrInvalidAction)
	}
	return Action{name: trimmedName, reason: strings.TrimSpace(reason), system: system}, nil
}

// Name returns the action label, e.g. "invoice.update".
func (action Action) Name() string {
	return action.name
}

// Reason returns the operator-supplied justification ("" for system actions).
func (action Action) Reason() string {
	return action.reason
}

// IsSystem reports whether the action is exempt from the reason requirement.
func (action Action) IsSystem() bool {
	return action.system
}

// Entry is a single immutable line in the audit chain.
type Entry struct {
	Sequence        int64
	RecordedUnixUTC int64
	EntityType      string
	EntityID        string
	Action          Action
	BeforeSnapshot  Snapshot
	AfterSnapshot   Snapshot
	PrevHash        string
	Hash            string
}

// AppendInput describes one mutation to record.
type AppendInput struct {
	EntityType     string
	EntityID       string
	Action         Action
	BeforeSnapshot Snapshot
	AfterSnapshot  Snapshot
}

// Filter narrows Export results. Zero fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	Descending bool
	Limit      int
}

// VerifyError localizes one detected chain defect.
type VerifyError struct {
	Sequence    int64  `json:"sequence"`
	Description string `json:"description"`
}

// Report is the outcome of a full chain verification.
type Report struct {
	OK       bool          `json:"ok"`
	Errors   []VerifyError `json:"errors"`
	Count    int64         `json:"count"`
	HeadHash string        `json:"head_hash"`
}

// Store is the persistence contract used by Service. Implementations must
// treat entries as insert-only and reject updates or deletes.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Head(ctx context.Context) (Entry, bool, error)
	InsertEntry(ctx context.Context, entry Entry) error
	ListEntries(ctx context.Context, filter Filter) ([]Entry, error)
}
