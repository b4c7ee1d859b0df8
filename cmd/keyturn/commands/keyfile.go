package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/keyturn/internal/acquire"
	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
)

// NewKeyFileCommand creates the keyfile command for generating key files.
func NewKeyFileCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyfile <path>",
		Short: "Generate a new key file",
		Long: `Write a fresh key file with 32 random bytes at the given path.

The file uses the version 2.0 XML format with an integrity hash, so a
damaged key file is detected at load time instead of silently deriving
the wrong key. An existing file is never overwritten: losing a key
file's original contents permanently locks every vault sealed with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := acquire.GenerateKeyFile(path); err != nil {
				return kterrors.KeyFileError(path, err)
			}
			cfg.Logger.Info("Generated key file %s", path)
			cfg.Logger.Warn("Back it up somewhere safe: vaults sealed with it cannot be opened without it")
			return nil
		},
	}

	return cmd
}
