package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentDigest fingerprints assembled preview documents so identical
// payloads are not pushed twice
func ContentDigest(parts ...string) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for oversized keys
		LogError("Failed to create digest: %v", err)
		return ""
	}
	for _, p := range parts {
		h.Write([]byte(p))
		// separator keeps ("ab","c") and ("a","bc") apart
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
