package seo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemClock implements Clock with UTC wall time.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator implements IDGenerator with time-ordered UUID v7 strings.
type UUIDGenerator struct{}

// NewID returns a UUID v7 string.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// SHA256Hasher implements Hasher with hex-encoded SHA-256 digests.
type SHA256Hasher struct{}

// Hash hashes the input and returns a hex digest.
func (SHA256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
