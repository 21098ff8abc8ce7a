package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("pass123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	t.Run("correct password", func(t *testing.T) {
		assert.NoError(t, h.Verify("pass123", hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.ErrorIs(t, h.Verify("pass124", hash), ErrPasswordMismatch)
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		other, err := h.Hash("pass123")
		require.NoError(t, err)
		assert.NotEqual(t, hash, other, "соль должна отличаться")
	})

	t.Run("corrupt hash", func(t *testing.T) {
		err := h.Verify("pass123", "$2a$garbage")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPasswordMismatch)
	})
}

func TestNewBcryptHasher_InvalidCost(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	_, err = NewBcryptHasher(0)
	assert.Error(t, err)
}

func TestArgon2Hasher(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32})

	hash, err := h.Hash("pass123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.NoError(t, h.Verify("pass123", hash))
	assert.ErrorIs(t, h.Verify("PASS123", hash), ErrPasswordMismatch)
}

func TestArgon2Hasher_MalformedHash(t *testing.T) {
	h := NewArgon2Hasher(DefaultArgon2Params())

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "wrong algorithm", encoded: "$argon2i$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad version", encoded: "$argon2id$v=x$m=8,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad params", encoded: "$argon2id$v=19$m=a,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad salt", encoded: "$argon2id$v=19$m=8,t=1,p=1$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, h.Verify("pass123", tt.encoded))
		})
	}
}

func TestHasher_VerifiesBothFormats(t *testing.T) {
	bcryptPrimary, err := NewHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	argonPrimary, err := NewHasher(AlgorithmArgon2id, bcrypt.MinCost)
	require.NoError(t, err)

	bcryptHash, err := bcryptPrimary.Hash("pass123")
	require.NoError(t, err)
	argonHash, err := argonPrimary.Hash("pass123")
	require.NoError(t, err)

	// Каждый hasher понимает хеши обоих алгоритмов
	for _, h := range []*Hasher{bcryptPrimary, argonPrimary} {
		assert.NoError(t, h.Verify("pass123", bcryptHash))
		assert.NoError(t, h.Verify("pass123", argonHash))
		assert.ErrorIs(t, h.Verify("wrong1", bcryptHash), ErrPasswordMismatch)
		assert.ErrorIs(t, h.Verify("wrong1", argonHash), ErrPasswordMismatch)
	}

	assert.ErrorIs(t, bcryptPrimary.Verify("pass123", "plaintext"), ErrUnknownHashFormat)
}

func TestNewHasher_UnknownAlgorithm(t *testing.T) {
	_, err := NewHasher("md5", DefaultBcryptCost)
	assert.Error(t, err)
}
