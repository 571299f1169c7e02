package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// hashKey builds prefix:sha256(json(parts)).
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyType reports the kind segment of a key built by a Keyer ("graph" or
// "history"), for hooks.
func KeyType(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}
