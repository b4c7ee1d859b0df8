package secure

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/awnumar/memguard"
)

// Buffer holds a piece of sensitive key material in protected memory.
// The bytes are encrypted at rest inside a memguard enclave and only
// decrypted for the duration of an Open call. A Buffer is immutable
// after construction, which is what makes it safe to share between an
// old credential and the new one built during rotation: neither side
// can observe a mutation through the other.
type Buffer struct {
	enclave *memguard.Enclave
	// fingerprint is the SHA-256 of the original material, kept so that
	// equality checks and logging never need the plaintext.
	fingerprint [sha256.Size]byte
	size        int
}

// NewBuffer copies data into a protected buffer. The caller keeps
// ownership of data and should zero it when done; the Buffer holds its
// own encrypted copy.
func NewBuffer(data []byte) *Buffer {
	fp := sha256.Sum256(data)
	// memguard.NewEnclave wipes the slice it is given, so hand it a copy.
	own := make([]byte, len(data))
	copy(own, data)

	return &Buffer{
		enclave:     memguard.NewEnclave(own),
		fingerprint: fp,
		size:        len(data),
	}
}

// Open decrypts the material into a locked buffer. The caller MUST call
// Destroy() on the returned LockedBuffer to wipe the plaintext.
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	use(locked.Bytes())
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	return b.enclave.Open()
}

// Bytes decrypts the material and returns an ordinary heap copy. Use
// Open when the caller can scope the plaintext lifetime; Bytes exists
// for collaborators (hashing, KDF input) that need a plain slice.
func (b *Buffer) Bytes() ([]byte, error) {
	locked, err := b.enclave.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, locked.Size())
	copy(out, locked.Bytes())
	return out, nil
}

// Size returns the length of the protected material.
func (b *Buffer) Size() int {
	return b.size
}

// Fingerprint returns the hex SHA-256 of the material. Two buffers with
// equal fingerprints hold the same bytes.
func (b *Buffer) Fingerprint() string {
	return hex.EncodeToString(b.fingerprint[:])
}

// Equal reports whether both buffers hold identical material, compared
// by fingerprint so neither side is decrypted.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil {
		return false
	}
	return b.fingerprint == other.fingerprint
}
