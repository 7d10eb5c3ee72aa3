package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashRecord fingerprints the normalized fields of one record.
// encoding/json sorts map keys, so equal content always hashes equal.
func HashRecord(fields map[string]any) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}

// HashPayload fingerprints a raw provider response
func HashPayload(payload []byte) string {
	return hashBytes(payload)
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
