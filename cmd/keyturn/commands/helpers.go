package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/systmms/keyturn/internal/acquire"
	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/vault"
	"github.com/systmms/keyturn/pkg/credential"
	"github.com/systmms/keyturn/pkg/rotation"
)

// resolveVaultPath picks the vault path from the positional argument or
// the config's default.
func resolveVaultPath(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Definition != nil && cfg.Definition.DefaultVault != "" {
		return cfg.Definition.DefaultVault, nil
	}
	return "", kterrors.UserError{
		Message:    "No vault path given",
		Suggestion: "Pass the vault path as an argument, or set default_vault in keyturn.yaml",
	}
}

// newPasswordReader returns the reader used to obtain a NEW password:
// prompt with confirmation on a terminal, a single stdin line when
// non-interactive.
func newPasswordReader(cfg *config.Config, prompt string) acquire.PasswordReader {
	if cfg.NonInteractive {
		return acquire.NewLineReader(os.Stdin)
	}
	return &acquire.TerminalReader{Prompt: prompt, Confirm: true}
}

// unlockPasswordReader returns the reader used to obtain the CURRENT
// password for unlocking: OS keyring when requested, otherwise a
// single prompt or stdin line.
func unlockPasswordReader(cfg *config.Config, vaultPath string, useKeyring bool) acquire.PasswordReader {
	if useKeyring {
		return &acquire.KeyringReader{
			Service:   cfg.Definition.KeyringService,
			VaultPath: vaultPath,
		}
	}
	if cfg.NonInteractive {
		return acquire.NewLineReader(os.Stdin)
	}
	return &acquire.TerminalReader{
		Prompt: fmt.Sprintf("Enter password to unlock %s: ", vaultPath),
	}
}

// buildCurrentCredential reconstructs the composite credential sealing
// the vault, prompting for each factor kind the header records, in
// header order so the combined key matches.
func buildCurrentCredential(ctx context.Context, cfg *config.Config, info vault.Info, keyFilePath string, useKeyring bool) (*credential.Composite, error) {
	cred := credential.New()
	loader := acquire.KeyFileLoader{}

	for _, kind := range info.Factors {
		switch kind {
		case credential.KindPassword:
			source := &acquire.PasswordSource{
				Reader: unlockPasswordReader(cfg, info.Path, useKeyring),
			}
			f, err := source.AcquirePassword(ctx)
			if err != nil {
				return nil, err
			}
			cred.AddFactor(f)

		case credential.KindFileKey:
			if keyFilePath == "" {
				return nil, kterrors.UserError{
					Message:    "This vault is protected by a key file",
					Suggestion: "Pass the key file with --key-file <path>",
				}
			}
			f, err := loader.LoadFileKey(ctx, keyFilePath)
			if err != nil {
				return nil, kterrors.KeyFileError(keyFilePath, err)
			}
			cred.AddFactor(f)

		default:
			return nil, kterrors.UserError{
				Message:    fmt.Sprintf("This vault requires a '%s' factor", kind),
				Details:    "keyturn can carry such factors through a rotation but cannot produce them to unlock a vault",
				Suggestion: "Unlock the vault with a build that supports this factor kind",
			}
		}
	}

	return cred, nil
}

// rotationUserError translates the engine's error taxonomy into the
// messages the CLI shows.
func rotationUserError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rotation.ErrAllFactorsRemoved):
		return kterrors.UserError{
			Message:    "Cannot remove all the keys from a vault",
			Suggestion: "Keep at least one factor, or set a new one in the same invocation",
			Err:        err,
		}
	case errors.Is(err, rotation.ErrPasswordAcquisition):
		return kterrors.UserError{
			Message: "Failed to set the vault password",
			Err:     err,
		}
	default:
		var loadErr *rotation.FileKeyLoadError
		if errors.As(err, &loadErr) {
			return kterrors.KeyFileError(loadErr.Path, loadErr.Err)
		}
		return err
	}
}
