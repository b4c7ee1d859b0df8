package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/keyturn/internal/acquire"
	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/vault"
	"github.com/systmms/keyturn/pkg/rotation"
)

// editOptions is the flag surface of the edit command.
type editOptions struct {
	setPassword   bool
	unsetPassword bool
	setKeyFile    string
	unsetKeyFile  bool

	keyFile    string // key file unlocking the CURRENT credential
	useKeyring bool
	remember   bool
}

// validate rejects conflicting flag combinations before any prompting
// happens. The rotation engine re-checks the same pairs; this layer
// exists to phrase the failure in terms of the flags the user typed.
func (o editOptions) validate() error {
	if o.setPassword && o.unsetPassword {
		return kterrors.UserError{
			Message: "Cannot use --set-password and --unset-password at the same time",
		}
	}
	if o.setKeyFile != "" && o.unsetKeyFile {
		return kterrors.UserError{
			Message: "Cannot use --set-key-file and --unset-key-file at the same time",
		}
	}
	return nil
}

// request translates the flags into a rotation request.
func (o editOptions) request() rotation.Request {
	return rotation.Request{
		UpdatePassword: o.setPassword,
		RemovePassword: o.unsetPassword,
		NewFileKeyPath: o.setKeyFile,
		RemoveFileKey:  o.unsetKeyFile,
	}
}

// NewEditCommand creates the edit command for rotating a vault's credential.
func NewEditCommand(cfg *config.Config) *cobra.Command {
	var opts editOptions

	cmd := &cobra.Command{
		Use:   "edit <vault>",
		Short: "Change the factors protecting a vault",
		Long: `Rotate the composite credential of an existing vault.

Factors not named by any flag survive unchanged, including
challenge-response and unknown factor kinds. Removing the last factor
is always rejected: a vault must keep at least one.

Examples:
  # Replace the password
  keyturn edit secrets.ktn --set-password

  # Drop the password, move protection to a key file
  keyturn edit secrets.ktn --unset-password --set-key-file work.keyx

  # Vault currently protected by a key file: supply it to unlock
  keyturn edit secrets.ktn --key-file work.keyx --set-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveVaultPath(cfg, args)
			if err != nil {
				return err
			}
			if err := cfg.Load(); err != nil {
				return err
			}
			return runEdit(cmd, cfg, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.setPassword, "set-password", false, "Set or replace the vault password")
	cmd.Flags().BoolVar(&opts.unsetPassword, "unset-password", false, "Remove the vault password")
	cmd.Flags().StringVar(&opts.setKeyFile, "set-key-file", "", "Set or replace the vault key file")
	cmd.Flags().BoolVar(&opts.unsetKeyFile, "unset-key-file", false, "Remove the vault key file")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "Key file protecting the vault today (for unlocking)")
	cmd.Flags().BoolVar(&opts.useKeyring, "use-keyring", false, "Unlock with the password remembered in the OS keyring")
	cmd.Flags().BoolVar(&opts.remember, "remember", false, "Store the new password in the OS keyring")

	return cmd
}

func runEdit(cmd *cobra.Command, cfg *config.Config, path string, opts editOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	req := opts.request()
	if req.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "Vault was not modified.")
		return nil
	}

	ctx := cmd.Context()

	info, err := vault.ReadInfo(path)
	if err != nil {
		return kterrors.VaultError(path, "open", err)
	}

	current, err := buildCurrentCredential(ctx, cfg, info, opts.keyFile, opts.useKeyring)
	if err != nil {
		return err
	}

	// Opening verifies the supplied credential before anything is
	// rotated; a wrong password fails here, not after the prompts for
	// the new factors.
	v, err := vault.Open(path, current)
	if err != nil {
		return kterrors.VaultError(path, "open", err)
	}

	passwords := &acquire.PasswordSource{
		Reader: newPasswordReader(cfg, "Enter new password: "),
	}
	if opts.remember {
		passwords.OnAccept = func(password []byte) error {
			if err := acquire.RememberPassword(cfg.Definition.KeyringService, path, password); err != nil {
				return kterrors.KeyringError(err)
			}
			return nil
		}
	}

	engine := rotation.NewEngine(passwords, acquire.KeyFileLoader{})

	next, err := engine.Rotate(ctx, current, req)
	if err != nil {
		return rotationUserError(err)
	}

	if err := v.SetCredential(next); err != nil {
		return err
	}
	if err := v.Save(); err != nil {
		return kterrors.VaultError(path, "save", err)
	}

	// A removed password makes a remembered one stale; drop it.
	if opts.unsetPassword {
		if err := acquire.ForgetPassword(cfg.Definition.KeyringService, path); err != nil {
			cfg.Logger.Warn("Could not remove the remembered password: %v", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Successfully edited the vault.")
	return nil
}
