package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/vault"
)

// NewInfoCommand creates the info command for inspecting a vault header.
func NewInfoCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <vault>",
		Short: "Show vault metadata without decrypting it",
		Long: `Print the format version and the factor kinds protecting a vault.

The factor kinds are read from the vault header; no credential is
needed and nothing is decrypted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveVaultPath(cfg, args)
			if err != nil {
				return err
			}
			if err := cfg.Load(); err != nil {
				return err
			}
			return runInfo(cmd, path)
		},
	}

	return cmd
}

func runInfo(cmd *cobra.Command, path string) error {
	info, err := vault.ReadInfo(path)
	if err != nil {
		return kterrors.VaultError(path, "read", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Vault:   %s\n", info.Path)
	fmt.Fprintf(out, "Version: %d\n", info.Version)
	fmt.Fprintf(out, "Size:    %d bytes\n", info.Size)
	fmt.Fprintf(out, "Factors: %d\n", len(info.Factors))
	for i, kind := range info.Factors {
		fmt.Fprintf(out, "  %d. %s\n", i+1, kind)
	}
	return nil
}
