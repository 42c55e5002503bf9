// Package sha256 fingerprints rendered spreadsheets so consumers can tell
// whether a run changed anything since the last one.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
