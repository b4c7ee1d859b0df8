// Package credential models the composite credential protecting a vault.
//
// A composite credential is an ordered collection of factors. Each
// factor is one independent piece of derived key material tagged with a
// kind (password, file key, challenge-response, or anything else). The
// kind exists purely so the rotation engine can classify factors; the
// material itself is an opaque blob owned by the credential.
//
// Composite is a plain value type: no I/O, no validation beyond what
// its operations state. Enforcing invariants like "a credential must
// keep at least one factor" is the rotation engine's job
// (pkg/rotation), not this package's.
package credential

import (
	"crypto/sha256"

	"github.com/systmms/keyturn/internal/secure"
)

// Kind classifies a factor for rotation bookkeeping. The set is open:
// a kind this code has never seen still round-trips through rotation
// unchanged rather than being dropped.
type Kind string

const (
	// KindPassword is a factor derived from a user-supplied password.
	KindPassword Kind = "password"

	// KindFileKey is a factor derived from the contents of a key file.
	KindFileKey Kind = "file-key"

	// KindChallengeResponse is a factor produced by a hardware
	// challenge-response token. Rotation never touches these.
	KindChallengeResponse Kind = "challenge-response"
)

// Factor is one kind-tagged piece of key material. The material is
// immutable after construction and held in protected memory, so a
// factor copied from an old credential into a new one can never be
// mutated through either side.
type Factor struct {
	kind     Kind
	material *secure.Buffer
}

// NewFactor builds a factor from raw derived key material. The caller
// keeps ownership of material and should zero it afterwards; the factor
// stores its own protected copy.
func NewFactor(kind Kind, material []byte) Factor {
	return Factor{
		kind:     kind,
		material: secure.NewBuffer(material),
	}
}

// NewPasswordFactor derives a password factor the way the vault format
// expects: SHA-256 of the UTF-8 password bytes.
func NewPasswordFactor(password []byte) Factor {
	sum := sha256.Sum256(password)
	defer wipe(sum[:])
	return NewFactor(KindPassword, sum[:])
}

// Kind returns the classification tag of the factor.
func (f Factor) Kind() Kind {
	return f.kind
}

// RawKey returns a heap copy of the derived key material. Callers that
// feed a KDF should zero the slice when done.
func (f Factor) RawKey() ([]byte, error) {
	return f.material.Bytes()
}

// Fingerprint returns the hex SHA-256 of the material. Useful for
// equality checks in tests and for the vault header, which records
// which factors sealed a payload without recording the factors.
func (f Factor) Fingerprint() string {
	return f.material.Fingerprint()
}

// Equal reports whether two factors have the same kind and material.
// Material is compared by fingerprint; nothing is decrypted.
func (f Factor) Equal(other Factor) bool {
	return f.kind == other.kind && f.material.Equal(other.material)
}

// valid reports whether the factor was built through a constructor.
// The zero Factor has no material and must not enter a credential.
func (f Factor) valid() bool {
	return f.material != nil
}

// Composite is an ordered sequence of factors. Order matters: the
// combined key is a hash over the factor materials in sequence order.
// Uniqueness by kind is not enforced here; at most one password and one
// file key are meaningful, which rotation maintains, but the model
// itself stays permissive.
type Composite struct {
	factors []Factor
}

// New returns an empty composite credential under construction.
func New() *Composite {
	return &Composite{}
}

// AddFactor appends a factor. No deduplication and no validation; a
// zero Factor is silently ignored so that a failed construction can't
// smuggle empty material into the credential.
func (c *Composite) AddFactor(f Factor) {
	if !f.valid() {
		return
	}
	c.factors = append(c.factors, f)
}

// Factors returns the factors in order. The slice is a copy; the
// factors it holds share their immutable material with the credential.
func (c *Composite) Factors() []Factor {
	out := make([]Factor, len(c.factors))
	copy(out, c.factors)
	return out
}

// Len returns the number of factors.
func (c *Composite) Len() int {
	return len(c.factors)
}

// IsEmpty reports whether the credential holds no factors. A completed
// credential must never be empty; rotation checks this before handing
// a new credential back to the caller.
func (c *Composite) IsEmpty() bool {
	return len(c.factors) == 0
}

// CountKind returns how many factors carry the given kind.
func (c *Composite) CountKind(kind Kind) int {
	n := 0
	for _, f := range c.factors {
		if f.kind == kind {
			n++
		}
	}
	return n
}

// Kinds returns the kind tags in sequence order.
func (c *Composite) Kinds() []Kind {
	out := make([]Kind, len(c.factors))
	for i, f := range c.factors {
		out[i] = f.kind
	}
	return out
}

// CombinedKey concatenates the raw material of every factor in order
// and hashes the result to a single 32-byte master key. This is the
// value the vault's KDF stretches before sealing a payload.
func (c *Composite) CombinedKey() ([]byte, error) {
	h := sha256.New()
	for _, f := range c.factors {
		raw, err := f.RawKey()
		if err != nil {
			return nil, err
		}
		h.Write(raw)
		wipe(raw)
	}
	return h.Sum(nil), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
