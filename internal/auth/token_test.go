package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m, err := NewTokenManager("s3cret", "billing")
	require.NoError(t, err)

	token, err := m.Issue("admin@hospital", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := m.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "admin@hospital", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "billing", claims.Issuer)
}

func TestTokenManager_Rejects(t *testing.T) {
	m, err := NewTokenManager("s3cret", "")
	require.NoError(t, err)

	other, err := NewTokenManager("different", "")
	require.NoError(t, err)
	foreign, err := other.Issue("x", "", time.Hour)
	require.NoError(t, err)

	expired, err := m.Issue("x", "", -time.Minute)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"wrong scheme", "Basic abc", ErrMalformedHeader},
		{"empty token", "Bearer ", ErrMalformedHeader},
		{"garbage", "Bearer not-a-jwt", ErrInvalidToken},
		{"wrong secret", "Bearer " + foreign, ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"alg none", "Bearer " + unsigned, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyHeader(tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "")
	assert.Error(t, err)
}
