package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a SHA-256 hex digest of arbitrary bytes.
func Fingerprint(data []byte) string {
	s := sha256.Sum256(data)
	return hex.EncodeToString(s[:])
}

// Short trims a fingerprint or digest to 12 characters for log lines.
func Short(s string) string {
	if i := len("sha256:"); len(s) > i && s[:i] == "sha256:" {
		s = s[i:]
	}
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
