package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/keyturn/internal/acquire"
	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/vault"
	"github.com/systmms/keyturn/pkg/credential"
	"github.com/systmms/keyturn/pkg/rotation"
)

// NewCreateCommand creates the create command for initializing a vault.
func NewCreateCommand(cfg *config.Config) *cobra.Command {
	var (
		setPassword bool
		setKeyFile  string
	)

	cmd := &cobra.Command{
		Use:   "create <vault>",
		Short: "Create a new encrypted vault",
		Long: `Create a new vault file protected by the requested factors.

At least one factor is required. The initial credential is assembled by
the same rotation engine that edits existing vaults, starting from an
empty credential, so a request that yields no factors at all is
rejected before anything touches disk.

Examples:
  # Password-protected vault
  keyturn create secrets.ktn --set-password

  # Password plus key file
  keyturn create secrets.ktn --set-password --set-key-file work.keyx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveVaultPath(cfg, args)
			if err != nil {
				return err
			}
			if err := cfg.Load(); err != nil {
				return err
			}
			return runCreate(cmd, cfg, path, setPassword, setKeyFile)
		},
	}

	cmd.Flags().BoolVar(&setPassword, "set-password", false, "Protect the vault with a password")
	cmd.Flags().StringVar(&setKeyFile, "set-key-file", "", "Protect the vault with the key file at this path")

	return cmd
}

func runCreate(cmd *cobra.Command, cfg *config.Config, path string, setPassword bool, setKeyFile string) error {
	if !setPassword && setKeyFile == "" {
		return kterrors.UserError{
			Message:    "A new vault needs at least one factor",
			Suggestion: "Pass --set-password, --set-key-file <path>, or both",
		}
	}

	engine := rotation.NewEngine(
		&acquire.PasswordSource{Reader: newPasswordReader(cfg, "Enter password for the new vault: ")},
		acquire.KeyFileLoader{},
	)

	cred, err := engine.Rotate(cmd.Context(), credential.New(), rotation.Request{
		UpdatePassword: setPassword,
		NewFileKeyPath: setKeyFile,
	})
	if err != nil {
		return rotationUserError(err)
	}

	if _, err := vault.Create(path, cred); err != nil {
		return kterrors.VaultError(path, "create", err)
	}

	cfg.Logger.Info("Created vault %s", path)
	return nil
}
