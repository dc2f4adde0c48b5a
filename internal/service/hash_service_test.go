package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testArgon2Params keeps hashing cheap in tests.
var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestArgon2HashService_PasswordAndPin(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	for _, secret := range []string{"SecureP@ssw0rd!", "482913", ""} {
		hash, err := svc.Hash(secret)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

		ok, err := svc.Verify(secret, hash)
		require.NoError(t, err)
		assert.True(t, ok, "secret %q should verify", secret)

		ok, err = svc.Verify(secret+"x", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	h1, err := svc.Hash("123456")
	require.NoError(t, err)
	h2, err := svc.Hash("123456")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon2HashService_DefaultParamsEncoded(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("test")
	require.NoError(t, err)
	assert.Contains(t, hash, "m=65536,t=1,p=4")
}

func TestArgon2HashService_VerifyUsesStoredParams(t *testing.T) {
	cheap := NewArgon2HashServiceWithParams(testArgon2Params)
	hash, err := cheap.Hash("123456")
	require.NoError(t, err)

	ok, err := NewArgon2HashService().Verify("123456", hash)
	require.NoError(t, err)
	assert.True(t, ok, "hashes stay verifiable after the default cost changes")
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	tests := []string{
		"not-a-valid-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	}
	for _, h := range tests {
		_, err := svc.Verify("pw", h)
		assert.Error(t, err, h)
	}
}
