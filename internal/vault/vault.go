// Package vault reads and writes keyturn vault files.
//
// A vault is a JSON payload sealed under a composite credential: the
// credential's combined key is stretched with scrypt against a fresh
// per-save salt and the payload encrypted with ChaCha20-Poly1305. The
// envelope records the kind tags of the sealing factors in the clear so
// commands know what to prompt for before decrypting.
//
// This package is the persistence collaborator of the rotation flow:
// rotation itself only produces a new credential; SetCredential and
// Save are what actually re-seal the vault under it.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/systmms/keyturn/pkg/credential"
)

// Payload is the decrypted content of a vault.
type Payload struct {
	CreatedAt  time.Time         `json:"created_at"`
	ModifiedAt time.Time         `json:"modified_at"`
	Entries    map[string]string `json:"entries"`
}

// Info describes a vault without opening it.
type Info struct {
	Path    string
	Version int
	Factors []credential.Kind
	Size    int64
}

// Vault is an unlocked vault file. It holds the decrypted payload and
// the credential that will seal the next Save.
type Vault struct {
	path    string
	payload Payload
	cred    *credential.Composite
}

// Create builds a new empty vault at path, sealed under cred, and
// writes it immediately. It refuses to overwrite an existing file.
func Create(path string, cred *credential.Composite) (*Vault, error) {
	if cred.IsEmpty() {
		return nil, fmt.Errorf("refusing to create a vault with no factors")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	now := time.Now().UTC()
	v := &Vault{
		path: path,
		payload: Payload{
			CreatedAt:  now,
			ModifiedAt: now,
			Entries:    map[string]string{},
		},
		cred: cred,
	}
	if err := v.Save(); err != nil {
		return nil, err
	}
	return v, nil
}

// Open decrypts the vault at path with cred. A credential that cannot
// open the file surfaces as ErrWrongCredential.
func Open(path string, cred *credential.Composite) (*Vault, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw, _, err := open(cred, blob)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("vault payload is corrupted: %w", err)
	}
	if payload.Entries == nil {
		payload.Entries = map[string]string{}
	}

	return &Vault{path: path, payload: payload, cred: cred}, nil
}

// ReadInfo returns vault metadata without a credential.
func ReadInfo(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	env, err := peek(blob)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Path:    path,
		Version: env.Version,
		Factors: env.Factors,
		Size:    fi.Size(),
	}, nil
}

// Path returns the vault's file path.
func (v *Vault) Path() string {
	return v.path
}

// Payload returns the decrypted payload.
func (v *Vault) Payload() Payload {
	return v.payload
}

// Credential returns the credential the next Save will seal with.
func (v *Vault) Credential() *credential.Composite {
	return v.cred
}

// SetCredential installs a new composite credential, typically the
// output of a rotation. It takes effect at the next Save; nothing is
// written here. An empty credential is rejected as a final backstop,
// though rotation has already enforced that invariant.
func (v *Vault) SetCredential(cred *credential.Composite) error {
	if cred.IsEmpty() {
		return fmt.Errorf("refusing to seal a vault with no factors")
	}
	v.cred = cred
	return nil
}

// Save seals the payload under the current credential and atomically
// replaces the vault file. Each save uses a fresh salt.
func (v *Vault) Save() error {
	v.payload.ModifiedAt = time.Now().UTC()

	raw, err := json.Marshal(v.payload)
	if err != nil {
		return err
	}
	defer wipe(raw)

	n, r, p := scryptParamsDefault()
	blob, err := seal(v.cred, raw, n, r, p)
	if err != nil {
		return err
	}

	return writeFileAtomic(v.path, blob, 0o600)
}
