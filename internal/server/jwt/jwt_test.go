package jwt

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

func TestAuthority_RoundTrip(t *testing.T) {
	a := NewAuthority(testSecret)

	token, _, err := a.Issue("user-123", "alice_1", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice_1", claims.Username)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
}

func TestAuthority_Expiry(t *testing.T) {
	tests := []struct {
		name     string
		remember bool
		want     time.Duration
	}{
		{name: "remember me", remember: true, want: 7 * 24 * time.Hour},
		{name: "session only", remember: false, want: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthority(testSecret)
			before := time.Now()

			token, expiresAt, err := a.Issue("user-123", "alice_1", tt.remember)
			require.NoError(t, err)
			assert.WithinDuration(t, before.Add(tt.want), expiresAt, 5*time.Second)

			claims, err := a.Verify(token)
			require.NoError(t, err)
			assert.WithinDuration(t, before.Add(tt.want), claims.ExpiresAt.Time, 5*time.Second)
		})
	}
}

func TestAuthority_Verify_Expired(t *testing.T) {
	a := NewAuthority(testSecret)
	issuedAt := time.Now().Add(-48 * time.Hour)
	a.now = func() time.Time { return issuedAt }

	token, _, err := a.Issue("user-123", "alice_1", false)
	require.NoError(t, err)

	a.now = time.Now
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestAuthority_Verify_Invalid(t *testing.T) {
	a := NewAuthority(testSecret)
	valid, _, err := a.Issue("user-123", "alice_1", false)
	require.NoError(t, err)

	forged, _, err := a.Issue("user-999", "mallory", false)
	require.NoError(t, err)
	// Payload другого пользователя с подписью исходного токена
	validParts := strings.Split(valid, ".")
	forgedParts := strings.Split(forged, ".")
	tampered := strings.Join([]string{forgedParts[0], forgedParts[1], validParts[2]}, ".")

	otherSecret, _, err := NewAuthority([]byte("other-secret")).Issue("user-123", "alice_1", false)
	require.NoError(t, err)

	noneToken, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{
		UserID: "user-123",
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    DefaultIssuer,
		},
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	foreignIssuer, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		UserID: "user-123",
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		UserID:           "user-123",
		RegisteredClaims: gojwt.RegisteredClaims{Issuer: DefaultIssuer},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "tampered", token: tampered},
		{name: "wrong secret", token: otherSecret},
		{name: "alg none", token: noneToken},
		{name: "foreign issuer", token: foreignIssuer},
		{name: "no expiry", token: noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}
