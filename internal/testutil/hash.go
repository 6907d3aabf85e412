package testutil

import (
	"encoding/hex"
	"testing"

	"github.com/zeebo/blake3"

	"havit-go/internal/hash"
)

// EmptyBlake3 is the BLAKE3 digest of zero bytes.
const EmptyBlake3 = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

// Blake3Hex returns the BLAKE3 digest of data as stored in the catalog.
func Blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewHasher returns the default content hasher.
func NewHasher(t *testing.T) *hash.Hasher {
	t.Helper()
	h, err := hash.New(hash.DefaultAlgorithm)
	if err != nil {
		t.Fatalf("hash.New() error = %v", err)
	}
	return h
}
