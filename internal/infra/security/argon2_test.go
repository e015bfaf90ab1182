package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "argon2id$v=19$"))

	match, err := VerifyPassword("hunter2-but-longer", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	first, err := HashPassword("same-password")
	require.NoError(t, err)
	second, err := HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"argon2id$v=18$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"argon2id$v=19$m=65536,t=3$c2FsdA$aGFzaA$extra",
	} {
		_, err := VerifyPassword("password", encoded)
		assert.Error(t, err, "encoded=%q", encoded)
	}
}

func TestVerifyPasswordEmptyInputs(t *testing.T) {
	match, err := VerifyPassword("", "whatever")
	require.NoError(t, err)
	assert.False(t, match)

	match, err = VerifyPassword("password", "")
	require.NoError(t, err)
	assert.False(t, match)
}

func TestConfigureArgon2Validation(t *testing.T) {
	original := CurrentArgon2Config()
	t.Cleanup(func() { require.NoError(t, ConfigureArgon2(original)) })

	assert.Error(t, ConfigureArgon2(Argon2Config{Memory: 1024, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 32}))
	assert.Error(t, ConfigureArgon2(Argon2Config{Memory: 65536, Iterations: 0, Parallelism: 4, SaltLength: 16, KeyLength: 32}))
	assert.Error(t, ConfigureArgon2(Argon2Config{Memory: 65536, Iterations: 3, Parallelism: 0, SaltLength: 16, KeyLength: 32}))
	assert.Error(t, ConfigureArgon2(Argon2Config{Memory: 65536, Iterations: 3, Parallelism: 4, SaltLength: 4, KeyLength: 32}))
	assert.Error(t, ConfigureArgon2(Argon2Config{Memory: 65536, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 8}))

	custom := Argon2Config{Memory: 32 * 1024, Iterations: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}
	require.NoError(t, ConfigureArgon2(custom))
	assert.Equal(t, custom, CurrentArgon2Config())

	// Hashes created under one configuration still verify after retuning,
	// because the parameters travel inside the encoded value.
	hash, err := HashPassword("migrating-password")
	require.NoError(t, err)
	require.NoError(t, ConfigureArgon2(original))
	match, err := VerifyPassword("migrating-password", hash)
	require.NoError(t, err)
	assert.True(t, match)
}
