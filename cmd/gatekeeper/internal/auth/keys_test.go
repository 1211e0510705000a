package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateKeySet_PersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	first, err := LoadOrGenerateKeySet(path)
	require.NoError(t, err)
	kid, _ := first.SigningKey()
	assert.NotEmpty(t, kid)

	_, err = os.Stat(path + ".kid")
	require.NoError(t, err)

	second, err := LoadOrGenerateKeySet(path)
	require.NoError(t, err)
	kid2, _ := second.SigningKey()
	assert.Equal(t, kid, kid2)
}

func TestLoadOrGenerateKeySet_InvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	_, err := LoadOrGenerateKeySet(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PEM block")
}

func TestKeySet_RotateKeepsPreviousKey(t *testing.T) {
	ks, err := GenerateKeySet()
	require.NoError(t, err)

	oldKid, _ := ks.SigningKey()
	newKid, err := ks.Rotate()
	require.NoError(t, err)
	assert.NotEqual(t, oldKid, newKid)

	current, _ := ks.SigningKey()
	assert.Equal(t, newKid, current)

	_, ok := ks.PublicKey(oldKid)
	assert.True(t, ok, "previous key must stay verifiable")
	assert.Len(t, ks.JWKS().Keys, 2)

	_, err = ks.Rotate()
	require.NoError(t, err)
	_, ok = ks.PublicKey(oldKid)
	assert.False(t, ok, "key two rotations old must be dropped")
}

func TestKeySet_RefreshPicksUpRotationFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	server, err := LoadOrGenerateKeySet(path)
	require.NoError(t, err)
	admin, err := LoadOrGenerateKeySet(path)
	require.NoError(t, err)

	changed, err := server.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	rotated, err := admin.Rotate()
	require.NoError(t, err)

	changed, err = server.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	kid, _ := server.SigningKey()
	assert.Equal(t, rotated, kid)
}

func TestKeySet_RefreshInMemoryIsNoop(t *testing.T) {
	ks, err := GenerateKeySet()
	require.NoError(t, err)

	changed, err := ks.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}
