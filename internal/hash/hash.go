// Package hash computes content digests for cataloged files.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	gohash "hash"
	"io"
	"syscall"

	"github.com/zeebo/blake3"
)

// BufferSize is the read chunk size. Memory use is constant regardless of
// file size.
const BufferSize = 64 * 1024

const (
	Blake3 = "blake3"
	SHA256 = "sha256"
)

// DefaultAlgorithm is used when the configuration names none.
const DefaultAlgorithm = Blake3

// Hasher streams bytes through a cryptographic hash function.
// Both supported algorithms produce 256-bit digests, rendered as 64
// lowercase hex characters.
type Hasher struct {
	algorithm string
	newHash   func() gohash.Hash
	bufSize   int
}

// New returns a Hasher for the named algorithm. The empty string selects
// DefaultAlgorithm.
func New(algorithm string) (*Hasher, error) {
	switch algorithm {
	case "", Blake3:
		return &Hasher{algorithm: Blake3, newHash: func() gohash.Hash { return blake3.New() }, bufSize: BufferSize}, nil
	case SHA256:
		return &Hasher{algorithm: SHA256, newHash: sha256.New, bufSize: BufferSize}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %q", algorithm)
	}
}

// Algorithm returns the algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Sum reads r to the end and returns the hex digest and byte count.
// Interrupted reads are retried; any other read error aborts.
func (h *Hasher) Sum(r io.Reader) (string, int64, error) {
	d := h.newHash()
	buf := make([]byte, h.bufSize)

	n, err := io.CopyBuffer(onlyWriter{d}, retryReader{r}, buf)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(d.Sum(nil)), n, nil
}

// retryReader retries reads that fail with EINTR. It deliberately hides
// any io.WriterTo/ReaderFrom of the underlying reader so every read goes
// through Read.
type retryReader struct {
	r io.Reader
}

func (rr retryReader) Read(p []byte) (int, error) {
	for {
		n, err := rr.r.Read(p)
		if err != nil && errors.Is(err, syscall.EINTR) {
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// onlyWriter hides ReadFrom so io.CopyBuffer uses the caller's buffer.
type onlyWriter struct {
	w io.Writer
}

func (o onlyWriter) Write(p []byte) (int, error) {
	return o.w.Write(p)
}
