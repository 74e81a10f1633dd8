package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeConfigID computes a deterministic config_id using SHA256.
// Formula: SHA256(strategy|version|k1=v1,k2=v2,...|promoted_at_ms)
// with parameter keys in sorted order so the hash is independent of
// map iteration order. Returns hex-encoded hash (64 characters).
func ComputeConfigID(
	strategy string,
	version string,
	parameters map[string]float64,
	promotedAtMs int64,
) string {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%g", k, parameters[k]))
	}

	data := fmt.Sprintf("%s|%s|%s|%d",
		strategy,
		version,
		strings.Join(pairs, ","),
		promotedAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
