package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGateway_RequiresSecret(t *testing.T) {
	_, err := NewGateway("")
	assert.Error(t, err)
}

func TestGateway_EncryptDecrypt(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	sealed, err := g.Encrypt("passport FR123456")
	require.NoError(t, err)
	require.NotEqual(t, "passport FR123456", sealed)

	plain, err := g.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "passport FR123456", plain)
}

func TestGateway_DecryptRejectsTampering(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	sealed, err := g.Encrypt("sensitive")
	require.NoError(t, err)

	_, err = g.Decrypt(sealed[:len(sealed)-4] + "AAAA")
	assert.Error(t, err)

	_, err = g.Decrypt("not base64 at all!")
	assert.Error(t, err)
}

func TestGateway_NonceVariesPerCall(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	a, err := g.Encrypt("same input")
	require.NoError(t, err)
	b, err := g.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGateway_PasswordHashing(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	encoded, err := g.HashPassword("Str0ng!Passw0rd!")
	require.NoError(t, err)
	assert.Regexp(t, `^[a-f0-9]{32}:[a-f0-9]{64}$`, encoded)

	assert.True(t, g.VerifyPassword("Str0ng!Passw0rd!", encoded))
	assert.False(t, g.VerifyPassword("wrong password", encoded))
	assert.False(t, g.VerifyPassword("Str0ng!Passw0rd!", "malformed"))
}

func TestGateway_HashSaltIsPerCall(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	a, err := g.HashPassword("Str0ng!Passw0rd!")
	require.NoError(t, err)
	b, err := g.HashPassword("Str0ng!Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGateway_SessionIDFormat(t *testing.T) {
	g, err := NewGateway("test-secret")
	require.NoError(t, err)

	id, err := g.NewSessionID()
	require.NoError(t, err)
	assert.True(t, ValidSessionID(id))

	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("short"))
	assert.False(t, ValidSessionID(id[:63]+"G"))
	assert.False(t, ValidSessionID(id+"00"))
}
