package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyturn/pkg/credential"
)

func testCredential(material ...string) *credential.Composite {
	c := credential.New()
	kinds := []credential.Kind{credential.KindPassword, credential.KindFileKey, credential.KindChallengeResponse}
	for i, m := range material {
		c.AddFactor(credential.NewFactor(kinds[i%len(kinds)], []byte(m)))
	}
	return c
}

func TestCreateOpenRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	cred := testCredential("pw-material", "fk-material")

	v, err := Create(path, cred)
	require.NoError(t, err)
	assert.Equal(t, path, v.Path())
	assert.False(t, v.Payload().CreatedAt.IsZero())

	opened, err := Open(path, testCredential("pw-material", "fk-material"))
	require.NoError(t, err)
	assert.Equal(t, v.Payload().CreatedAt.Unix(), opened.Payload().CreatedAt.Unix())
	assert.NotNil(t, opened.Payload().Entries)
}

func TestCreateRejectsEmptyCredential(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	_, err := Create(path, credential.New())
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	_, err := Create(path, testCredential("pw"))
	require.NoError(t, err)

	_, err = Create(path, testCredential("other"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestOpenWrongCredential(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	_, err := Create(path, testCredential("right"))
	require.NoError(t, err)

	_, err = Open(path, testCredential("wrong"))
	assert.ErrorIs(t, err, ErrWrongCredential)
}

func TestOpenWrongFactorOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	cred := credential.New()
	cred.AddFactor(credential.NewFactor(credential.KindPassword, []byte("a")))
	cred.AddFactor(credential.NewFactor(credential.KindFileKey, []byte("b")))
	_, err := Create(path, cred)
	require.NoError(t, err)

	swapped := credential.New()
	swapped.AddFactor(credential.NewFactor(credential.KindFileKey, []byte("b")))
	swapped.AddFactor(credential.NewFactor(credential.KindPassword, []byte("a")))
	_, err = Open(path, swapped)
	assert.ErrorIs(t, err, ErrWrongCredential)
}

func TestOpenNotAVault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk.ktn")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o600))

	_, err := Open(path, testCredential("pw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a keyturn vault")
}

func TestOpenUnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "future.ktn")
	blob, err := json.Marshal(envelope{Version: formatVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	_, err = Open(path, testCredential("pw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vault version")
}

func TestReadInfo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	cred := credential.New()
	cred.AddFactor(credential.NewFactor(credential.KindPassword, []byte("pw")))
	cred.AddFactor(credential.NewFactor(credential.KindFileKey, []byte("fk")))
	_, err := Create(path, cred)
	require.NoError(t, err)

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, formatVersion, info.Version)
	assert.Equal(t, []credential.Kind{credential.KindPassword, credential.KindFileKey}, info.Factors)
	assert.Positive(t, info.Size)
}

func TestRotateCredentialReseals(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	v, err := Create(path, testCredential("old-pw"))
	require.NoError(t, err)

	next := testCredential("new-pw", "new-fk")
	require.NoError(t, v.SetCredential(next))
	require.NoError(t, v.Save())

	// Old credential no longer opens the vault; the new one does.
	_, err = Open(path, testCredential("old-pw"))
	assert.ErrorIs(t, err, ErrWrongCredential)

	opened, err := Open(path, testCredential("new-pw", "new-fk"))
	require.NoError(t, err)
	assert.Equal(t, next.Kinds(), opened.Credential().Kinds())

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, next.Kinds(), info.Factors)
}

func TestSetCredentialRejectsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	v, err := Create(path, testCredential("pw"))
	require.NoError(t, err)

	err = v.SetCredential(credential.New())
	require.Error(t, err)
	assert.Equal(t, 1, v.Credential().Len(), "the sealing credential must survive a rejected swap")
}

func TestSaveUsesFreshSalt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	v, err := Create(path, testCredential("pw"))
	require.NoError(t, err)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, v.Save())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	var e1, e2 envelope
	require.NoError(t, json.Unmarshal(first, &e1))
	require.NoError(t, json.Unmarshal(second, &e2))
	assert.NotEqual(t, e1.Salt, e2.Salt)
	assert.NotEqual(t, e1.Cipher, e2.Cipher)
}

func TestSavePermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.ktn")
	_, err := Create(path, testCredential("pw"))
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}
