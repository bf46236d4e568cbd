package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

// Hash returns the hex sha256 of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes the JSON form of v. Map keys are sorted, so equal
// values always produce the same fingerprint.
func Fingerprint(v any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return Hash(data), nil
}

// Short returns the first eight characters of a hash for display
func Short(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}
