package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrNotRemembered is returned when the OS keyring holds no password
// for the requested vault.
var ErrNotRemembered = errors.New("no remembered password for this vault")

// KeyringReader reads a remembered vault password from the platform
// keychain (Secret Service on Linux, Keychain on macOS, Credential
// Manager on Windows). Entries are stored per vault path under a
// configurable service name.
type KeyringReader struct {
	Service   string
	VaultPath string
}

// ReadPassword looks up the remembered password.
func (k *KeyringReader) ReadPassword(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secret, err := keyring.Get(k.Service, k.VaultPath)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotRemembered
		}
		return nil, fmt.Errorf("querying OS keyring: %w", err)
	}
	return []byte(secret), nil
}

// RememberPassword stores a vault password in the OS keyring.
func RememberPassword(service, vaultPath string, password []byte) error {
	if err := keyring.Set(service, vaultPath, string(password)); err != nil {
		return fmt.Errorf("storing password in OS keyring: %w", err)
	}
	return nil
}

// ForgetPassword removes a remembered vault password. Removing an
// entry that does not exist is not an error.
func ForgetPassword(service, vaultPath string) error {
	err := keyring.Delete(service, vaultPath)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("removing password from OS keyring: %w", err)
	}
	return nil
}
