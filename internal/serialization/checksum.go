package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Checksum is the SHA-256 digest of a file's data section.
type Checksum [ChecksumSize]byte

// String returns the digest in hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) Checksum {
	return sha256.Sum256(data)
}

// ComputeChecksumReader computes the checksum of everything read from r.
func ComputeChecksumReader(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, err
	}
	var sum Checksum
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored Checksum) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
