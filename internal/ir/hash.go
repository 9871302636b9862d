package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPipeline = "active-aggregate/pipeline/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of a pipeline. Two
// pipelines share a fingerprint exactly when their canonical forms match.
func Fingerprint(p Pipeline) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPipeline, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error. Use in tests only.
func MustFingerprint(p Pipeline) string {
	fp, err := Fingerprint(p)
	if err != nil {
		panic(err)
	}
	return fp
}
