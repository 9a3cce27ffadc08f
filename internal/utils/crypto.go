// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPayload fingerprints a raw webhook body for the audit trail.
func HashPayload(payload []byte) string {
	hasher := sha256.New()
	hasher.Write(payload)
	return hex.EncodeToString(hasher.Sum(nil))
}
