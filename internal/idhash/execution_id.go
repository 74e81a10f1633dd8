package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeExecutionID computes a deterministic execution_id using SHA256.
// Formula: SHA256(symbol|side|strategy|version|timestamp_ms|nonce)
// Returns hex-encoded hash (64 characters).
//
// The nonce disambiguates executions created inside the same
// millisecond; the executor passes a per-process sequence number so a
// burst of identical signals still yields one ledger row each.
func ComputeExecutionID(
	symbol string,
	side string,
	strategy string,
	version string,
	timestampMs int64,
	nonce uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		symbol,
		side,
		strategy,
		version,
		timestampMs,
		nonce,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
