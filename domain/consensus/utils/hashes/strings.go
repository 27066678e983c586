package hashes

import (
	"encoding/hex"
	"strings"

	"github.com/minio/sha256-simd"
)

// HashSize is the size in bytes of a digest
const HashSize = sha256.Size

// HashStringLength is the length of a hex encoded digest
const HashStringLength = HashSize * 2

// ZeroHashString is a digest string made of HashStringLength zeros. It's
// the merkle root of a block without transactions.
var ZeroHashString = strings.Repeat("0", HashStringLength)

// HashHex returns the hex encoded digest of data
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashStringsHex returns the hex encoded digest of the concatenation of parts
func HashStringsHex(parts ...string) string {
	writer := NewHashWriter()
	for _, part := range parts {
		writer.InfallibleWriteString(part)
	}
	return writer.Finalize()
}

// LeadingZeroDigits returns the number of leading '0' characters in hash
func LeadingZeroDigits(hash string) int {
	count := 0
	for count < len(hash) && hash[count] == '0' {
		count++
	}
	return count
}

// IsHashString returns whether s looks like a hex encoded digest
func IsHashString(s string) bool {
	if len(s) != HashStringLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
