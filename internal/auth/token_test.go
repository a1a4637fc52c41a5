package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue("65f0c0ffee0000000000abcd")
	require.NoError(t, err)

	subject, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", subject)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	issuer := NewTokenIssuer("secret", 0).WithClock(func() time.Time { return now })

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	now = issuedAt.Add(59 * time.Minute)
	_, err = issuer.Validate(token)
	require.NoError(t, err)

	now = issuedAt.Add(61 * time.Minute)
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)

	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "user-1",
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	noExpirySigned, err := noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": foreign,
		"alg none":     unsigned,
		"no expiry":    noExpirySigned,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenIssuer_EmptyUserID(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Issue(" ")
	assert.Error(t, err)
}
