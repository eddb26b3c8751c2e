package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSecret_Plain(t *testing.T) {
	assert.True(t, MatchSecret("s3cret", "s3cret"))
	assert.True(t, MatchSecret("  s3cret\n", "s3cret"))
	assert.False(t, MatchSecret("s3cret", "s3cre"))
	assert.False(t, MatchSecret("", ""))
	assert.False(t, MatchSecret("", "anything"))
	assert.False(t, MatchSecret("s3cret", ""))
}

func TestMatchSecret_Bcrypt(t *testing.T) {
	h, err := HashSecret("bcrypt", "s3cret")
	require.NoError(t, err)
	require.True(t, IsBcryptHash(h))
	assert.True(t, MatchSecret(h, "s3cret"))
	assert.False(t, MatchSecret(h, "nope"))
	assert.False(t, MatchSecret(h, h), "the hash itself is not the secret")
}

func TestMatchSecret_Argon2id(t *testing.T) {
	h, err := HashSecret("argon2id", "s3cret")
	require.NoError(t, err)
	require.True(t, IsArgon2idHash(h))
	assert.True(t, MatchSecret(h, "s3cret"))
	assert.False(t, MatchSecret(h, "nope"))

	_, err = VerifyArgon2id("$argon2id$broken", "x")
	assert.Error(t, err)
}

func TestHashSecret_Errors(t *testing.T) {
	_, err := HashSecret("md5", "x")
	assert.Error(t, err)
	_, err = HashSecret("bcrypt", "")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "sk_t…(12)", Redact("sk_test_abcd"))
	assert.Equal(t, "ab…(2)", Redact("ab"))
	assert.Equal(t, "", Redact(""))
}
