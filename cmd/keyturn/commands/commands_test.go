package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyturn/internal/config"
	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/logging"
	"github.com/systmms/keyturn/internal/vault"
	"github.com/systmms/keyturn/pkg/credential"
	"github.com/systmms/keyturn/pkg/rotation"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Path:   filepath.Join(t.TempDir(), "keyturn.yaml"),
		Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true),
	}
	require.NoError(t, cfg.Load())
	return cfg
}

// writeRawKeyFile drops a 32-byte key file and returns its path.
func writeRawKeyFile(t *testing.T, dir, name string) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, key, 0o600))
	return path
}

func TestResolveVaultPath(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	path, err := resolveVaultPath(cfg, []string{"given.ktn"})
	require.NoError(t, err)
	assert.Equal(t, "given.ktn", path)

	_, err = resolveVaultPath(cfg, nil)
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "No vault path given", userErr.Message)

	cfg.Definition.DefaultVault = "default.ktn"
	path, err = resolveVaultPath(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "default.ktn", path)
}

func TestEditOptionsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, editOptions{}.validate())
	assert.NoError(t, editOptions{setPassword: true, unsetKeyFile: true}.validate())

	err := editOptions{setPassword: true, unsetPassword: true}.validate()
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "--set-password and --unset-password")

	err = editOptions{setKeyFile: "k.keyx", unsetKeyFile: true}.validate()
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "--set-key-file and --unset-key-file")
}

func TestEditOptionsRequest(t *testing.T) {
	t.Parallel()

	opts := editOptions{setPassword: true, setKeyFile: "new.keyx"}
	req := opts.request()
	assert.True(t, req.UpdatePassword)
	assert.False(t, req.RemovePassword)
	assert.Equal(t, "new.keyx", req.NewFileKeyPath)
	assert.False(t, req.RemoveFileKey)

	assert.True(t, editOptions{keyFile: "unlock-only.keyx", useKeyring: true}.request().IsZero())
}

func TestRotationUserError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, rotationUserError(nil))

	var userErr kterrors.UserError
	err := rotationUserError(rotation.ErrAllFactorsRemoved)
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Cannot remove all the keys from a vault", userErr.Message)

	err = rotationUserError(rotation.ErrPasswordAcquisition)
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to set the vault password", userErr.Message)

	loadErr := &rotation.FileKeyLoadError{Path: "gone.keyx", Err: os.ErrNotExist}
	err = rotationUserError(loadErr)
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "gone.keyx")

	other := errors.New("unrelated")
	assert.Equal(t, other, rotationUserError(other))
}

func TestEditNoFlagsLeavesVaultUntouched(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	keyPath := writeRawKeyFile(t, dir, "vault.keyx")
	vaultPath := filepath.Join(dir, "secrets.ktn")

	cmd := NewCreateCommand(cfg)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{vaultPath, "--set-key-file", keyPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	before, err := os.ReadFile(vaultPath)
	require.NoError(t, err)

	var out bytes.Buffer
	edit := NewEditCommand(cfg)
	edit.SetOut(&out)
	edit.SetArgs([]string{vaultPath})
	require.NoError(t, edit.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Vault was not modified.")

	after, err := os.ReadFile(vaultPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a no-op edit must not even re-seal the file")
}

func TestCreateRequiresAFactor(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cmd := NewCreateCommand(cfg)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "empty.ktn")})

	err := cmd.ExecuteContext(context.Background())
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "at least one factor")
}

func TestCreateAndRotateKeyFileVault(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	oldKey := writeRawKeyFile(t, dir, "old.keyx")
	newKey := writeRawKeyFile(t, dir, "new.keyx")
	vaultPath := filepath.Join(dir, "secrets.ktn")

	create := NewCreateCommand(cfg)
	create.SetOut(&bytes.Buffer{})
	create.SetArgs([]string{vaultPath, "--set-key-file", oldKey})
	require.NoError(t, create.ExecuteContext(context.Background()))

	info, err := vault.ReadInfo(vaultPath)
	require.NoError(t, err)
	assert.Equal(t, []credential.Kind{credential.KindFileKey}, info.Factors)

	var out bytes.Buffer
	edit := NewEditCommand(cfg)
	edit.SetOut(&out)
	edit.SetArgs([]string{vaultPath, "--key-file", oldKey, "--set-key-file", newKey})
	require.NoError(t, edit.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Successfully edited the vault.")

	// The old key file no longer unlocks the vault.
	editOld := NewEditCommand(cfg)
	editOld.SetOut(&bytes.Buffer{})
	editOld.SetErr(&bytes.Buffer{})
	editOld.SetArgs([]string{vaultPath, "--key-file", oldKey, "--unset-key-file"})
	require.Error(t, editOld.ExecuteContext(context.Background()))
}

func TestEditCannotRemoveLastFactor(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	keyPath := writeRawKeyFile(t, dir, "only.keyx")
	vaultPath := filepath.Join(dir, "secrets.ktn")

	create := NewCreateCommand(cfg)
	create.SetOut(&bytes.Buffer{})
	create.SetArgs([]string{vaultPath, "--set-key-file", keyPath})
	require.NoError(t, create.ExecuteContext(context.Background()))

	edit := NewEditCommand(cfg)
	edit.SetOut(&bytes.Buffer{})
	edit.SetErr(&bytes.Buffer{})
	edit.SetArgs([]string{vaultPath, "--key-file", keyPath, "--unset-key-file"})

	err := edit.ExecuteContext(context.Background())
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Cannot remove all the keys from a vault", userErr.Message)

	// The vault still opens with the original key file.
	again := NewEditCommand(cfg)
	again.SetOut(&bytes.Buffer{})
	again.SetArgs([]string{vaultPath})
	require.NoError(t, again.ExecuteContext(context.Background()))
}

func TestEditMissingKeyFileForUnlock(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	keyPath := writeRawKeyFile(t, dir, "vault.keyx")
	vaultPath := filepath.Join(dir, "secrets.ktn")

	create := NewCreateCommand(cfg)
	create.SetOut(&bytes.Buffer{})
	create.SetArgs([]string{vaultPath, "--set-key-file", keyPath})
	require.NoError(t, create.ExecuteContext(context.Background()))

	edit := NewEditCommand(cfg)
	edit.SetOut(&bytes.Buffer{})
	edit.SetErr(&bytes.Buffer{})
	edit.SetArgs([]string{vaultPath, "--unset-key-file", "--set-password"})

	err := edit.ExecuteContext(context.Background())
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "protected by a key file")
}

func TestInfoCommand(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	keyPath := writeRawKeyFile(t, dir, "vault.keyx")
	vaultPath := filepath.Join(dir, "secrets.ktn")

	create := NewCreateCommand(cfg)
	create.SetOut(&bytes.Buffer{})
	create.SetArgs([]string{vaultPath, "--set-key-file", keyPath})
	require.NoError(t, create.ExecuteContext(context.Background()))

	var out bytes.Buffer
	info := NewInfoCommand(cfg)
	info.SetOut(&out)
	info.SetArgs([]string{vaultPath})
	require.NoError(t, info.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), vaultPath)
	assert.Contains(t, out.String(), "Version: 1")
	assert.Contains(t, out.String(), "file-key")
}

func TestInfoMissingVault(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	info := NewInfoCommand(cfg)
	info.SetOut(&bytes.Buffer{})
	info.SetErr(&bytes.Buffer{})
	info.SetArgs([]string{filepath.Join(t.TempDir(), "missing.ktn")})

	err := info.ExecuteContext(context.Background())
	var userErr kterrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.NotEmpty(t, userErr.Suggestion)
}

func TestKeyFileCommand(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "generated.keyx")

	gen := NewKeyFileCommand(cfg)
	gen.SetOut(&bytes.Buffer{})
	gen.SetArgs([]string{path})
	require.NoError(t, gen.ExecuteContext(context.Background()))
	assert.FileExists(t, path)

	// A second run must not clobber the key.
	again := NewKeyFileCommand(cfg)
	again.SetOut(&bytes.Buffer{})
	again.SetErr(&bytes.Buffer{})
	again.SetArgs([]string{path})
	require.Error(t, again.ExecuteContext(context.Background()))
}
