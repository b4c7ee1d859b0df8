package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/systmms/keyturn/pkg/credential"
)

// formatVersion is the current on-disk vault format.
const formatVersion = 1

// ErrWrongCredential is returned when the supplied credential cannot
// open the vault: wrong password, wrong key file, or a corrupted file.
// The AEAD cannot distinguish these cases.
var ErrWrongCredential = errors.New("wrong credential or corrupted vault")

// envelope is the on-disk JSON structure. The factor kind tags are
// stored in the clear so a caller can tell what to prompt for before
// decrypting; they reveal the shape of the credential, not its material.
type envelope struct {
	Version int               `json:"version"`
	Salt    []byte            `json:"salt"`
	N       int               `json:"scrypt_N"`
	R       int               `json:"scrypt_r"`
	P       int               `json:"scrypt_p"`
	Factors []credential.Kind `json:"factors"`
	Cipher  []byte            `json:"cipher"`
}

// seal derives a key from the composite credential and encrypts raw
// into a JSON envelope. Every seal uses a fresh salt, so a zero nonce
// is safe: the key is unique per envelope.
func seal(cred *credential.Composite, raw []byte, n, r, p int) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}

	key, err := deriveKey(cred, salt[:], n, r, p)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(envelope{
		Version: formatVersion,
		Salt:    salt[:],
		N:       n,
		R:       r,
		P:       p,
		Factors: cred.Kinds(),
		Cipher:  ct,
	})
}

// open parses the JSON envelope and decrypts its payload with a key
// derived from the composite credential.
func open(cred *credential.Composite, blob []byte) (payload []byte, env envelope, err error) {
	if err = json.Unmarshal(blob, &env); err != nil {
		return nil, env, fmt.Errorf("vault file is not a keyturn vault: %w", err)
	}
	if env.Version > formatVersion {
		return nil, env, fmt.Errorf("unsupported vault version %d", env.Version)
	}

	key, err := deriveKey(cred, env.Salt, env.N, env.R, env.P)
	if err != nil {
		return nil, env, err
	}
	defer wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, env, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	payload, err = aead.Open(nil, nonce[:], env.Cipher, env.Salt)
	if err != nil {
		return nil, env, ErrWrongCredential
	}
	return payload, env, nil
}

// deriveKey stretches the credential's combined key with scrypt.
func deriveKey(cred *credential.Composite, salt []byte, n, r, p int) ([]byte, error) {
	combined, err := cred.CombinedKey()
	if err != nil {
		return nil, err
	}
	defer wipe(combined)
	return scrypt.Key(combined, salt, n, r, p, chacha20poly1305.KeySize)
}

// peek parses only the envelope metadata, without a credential.
func peek(blob []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return env, fmt.Errorf("vault file is not a keyturn vault: %w", err)
	}
	if env.Version > formatVersion {
		return env, fmt.Errorf("unsupported vault version %d", env.Version)
	}
	return env, nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (n, r, p int) { return 1 << 15, 8, 1 }

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
