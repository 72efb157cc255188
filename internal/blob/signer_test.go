package blob

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/cmsadmin/model"
)

func TestURLSigner_roundTrip(t *testing.T) {
	s, err := NewURLSigner("secret", time.Minute)
	require.NoError(t, err)

	token, expires, err := s.Sign("images/a.png")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 2*time.Second)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", got)
}

func TestURLSigner_expired(t *testing.T) {
	s, err := NewURLSigner("secret", time.Minute)
	require.NoError(t, err)
	token, _, err := s.Sign("a.png")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Verify(token)
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.ErrForbidden))
	assert.Contains(t, err.Error(), "expired")
}

func TestURLSigner_rejectsForeignTokens(t *testing.T) {
	s, _ := NewURLSigner("secret", time.Minute)
	other, _ := NewURLSigner("other-secret", time.Minute)
	token, _, err := other.Sign("a.png")
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.True(t, model.IsCode(err, model.ErrForbidden))

	// Right key, wrong issuer.
	claims := &urlClaims{Path: "a.png", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Verify(forged)
	assert.True(t, model.IsCode(err, model.ErrForbidden))

	// No expiry.
	claims = &urlClaims{Path: "a.png", RegisteredClaims: jwt.RegisteredClaims{Issuer: urlIssuer}}
	forged, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Verify(forged)
	assert.True(t, model.IsCode(err, model.ErrForbidden))
}

func TestNewURLSigner_requiresSecret(t *testing.T) {
	_, err := NewURLSigner("", time.Minute)
	assert.Error(t, err)
}
