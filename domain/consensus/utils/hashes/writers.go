package hashes

import (
	"encoding/hex"
	"hash"

	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
)

// HashWriter is used to incrementally hash data without concatenating all of the data to a single buffer
// it exposes an io.Writer api and a Finalize function to get the resulting hash.
// The used hash function is SHA-256.
type HashWriter struct {
	hash.Hash
}

// NewHashWriter returns a new HashWriter
func NewHashWriter() HashWriter {
	return HashWriter{sha256.New()}
}

// InfallibleWrite is just like write but doesn't return anything
func (h HashWriter) InfallibleWrite(p []byte) {
	// This write can never return an error, this is part of the hash.Hash interface contract.
	_, err := h.Write(p)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// InfallibleWriteString writes the bytes of s
func (h HashWriter) InfallibleWriteString(s string) {
	h.InfallibleWrite([]byte(s))
}

// Finalize returns the resulting hash as a lowercase hex string
func (h HashWriter) Finalize() string {
	var sum [HashSize]byte
	return hex.EncodeToString(h.Sum(sum[:0]))
}
