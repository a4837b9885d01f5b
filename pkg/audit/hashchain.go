package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenesisHash is the prevHash of the very first chain entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashDigestLength is the hex length of a chain digest.
const HashDigestLength = 64

const hashFieldSeparator = "\n"

// HashFields is the canonical input to the chain digest. Field order is fixed;
// changing it invalidates every persisted hash.
type HashFields struct {
	Sequence         int64
	RecordedUnixUTC  int64
	EntityType       string
	EntityID         string
	Action           string
	Reason           string
	SystemAction     bool
	BeforeSnapshot   Snapshot
	AfterSnapshot    Snapshot
}

// ComputeHash chains prevHash with the canonical encoding of fields. Pure and
// deterministic: two logically identical entries always hash identically.
func ComputeHash(prevHash string, fields HashFields) string {
	parts := []string{
		prevHash,
		strconv.FormatInt(fields.Sequence, 10),
		strconv.FormatInt(fields.RecordedUnixUTC, 10),
		fields.EntityType,
		fields.EntityID,
		fields.Action,
		fields.Reason,
		strconv.FormatBool(fields.SystemAction),
		fields.BeforeSnapshot.String(),
		fields.AfterSnapshot.String(),
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, hashFieldSeparator)))
	return hex.EncodeToString(digest[:])
}

func hashFieldsOf(entry Entry) HashFields {
	return HashFields{
		Sequence:        entry.Sequence,
		RecordedUnixUTC: entry.RecordedUnixUTC,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          entry.Action.Name(),
		Reason:          entry.Action.Reason(),
		SystemAction:    entry.Action.IsSystem(),
		BeforeSnapshot:  entry.BeforeSnapshot,
		AfterSnapshot:   entry.AfterSnapshot,
	}
}
