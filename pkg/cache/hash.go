package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// hashKey returns "prefix:sha256(json(parts))".
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// kindOf returns the key type a key was built for, skipping any scope
// prefix, or "" when it matches none.
func kindOf(key string) string {
	for _, k := range [...]string{KindTrees, KindLayout, KindArtifact} {
		if i := len(key) - 64 - len(k) - 1; i >= 0 && key[i:i+len(k)] == k && key[i+len(k)] == ':' {
			return k
		}
	}
	return ""
}
