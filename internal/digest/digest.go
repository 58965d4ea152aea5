// Package digest produces canonical JSON and content digests for payloads
// that travel between the client and the scorer of record.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 (JCS) canonical form of JSON input.
func Canonical(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Sum canonicalizes JSON and returns its sha256 hex digest.
func Sum(input []byte) (string, error) {
	canonical, err := Canonical(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Encode marshals v to canonical JSON and returns it with its digest.
func Encode(v any) ([]byte, string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	canonical, err := Canonical(raw)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

// Verify reports whether payload hashes to want.
func Verify(payload []byte, want string) (bool, error) {
	got, err := Sum(payload)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
