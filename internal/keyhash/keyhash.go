// Package keyhash computes stable content hashes for loader and cache keys.
package keyhash

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Sum hashes the canonical JSON encoding of v. Map keys are encoded in
// sorted order, so equal trees hash equally regardless of insertion order.
func Sum(v any) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode hash input: %w", err)
	}
	return xxhash.Sum64(b), nil
}

// Of returns "<prefix>-<hex hash of v>".
// A nil v hashes as JSON null.
func Of(prefix string, v any) (string, error) {
	h, err := Sum(v)
	if err != nil {
		return "", err
	}
	return prefix + "-" + strconv.FormatUint(h, 16), nil
}
