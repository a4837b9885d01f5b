package audit

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the audit ledger.
var (
	ErrEmptyReason          = errors.New("empty reason")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidEntityRef     = errors.New("invalid entity reference")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrInvalidServiceConfig = errors.New("invalid service config")

	// ErrIntegrity is the root of the integrity category: callers use
	// errors.Is(err, ErrIntegrity) to tell "the ledger is corrupted" apart
	// from "your input was wrong".
	ErrIntegrity = errors.New("ledger integrity violation")

	ErrImmutableEntry   = fmt.Errorf("%w: audit entries cannot be updated or deleted", ErrIntegrity)
	ErrSequenceConflict = fmt.Errorf("%w: duplicate sequence", ErrIntegrity)
)
