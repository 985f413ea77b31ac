package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives the cache key for a call. Parameters are serialized through
// encoding/json, which orders map keys, so insertion order never changes the key.
func Key(prefix, kind, operand string, params map[string]any) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding cache key params: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(operand))
	h.Write([]byte{0})
	h.Write(canonical)

	return prefix + kind + ":" + hex.EncodeToString(h.Sum(nil))[:40], nil
}
