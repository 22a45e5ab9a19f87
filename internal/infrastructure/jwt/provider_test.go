package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeys(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSignVerify_RoundTrip(t *testing.T) {
	key := newKeys(t)
	p := NewProviderFromKeys(key, &key.PublicKey, time.Hour)

	tok, err := p.Sign("user-1")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestVerify_Expired(t *testing.T) {
	key := newKeys(t)
	p := NewProviderFromKeys(key, &key.PublicKey, -time.Minute)

	tok, err := p.Sign("user-1")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_WrongKey(t *testing.T) {
	signer := newKeys(t)
	other := newKeys(t)

	tok, err := NewProviderFromKeys(signer, &signer.PublicKey, time.Hour).Sign("user-1")
	require.NoError(t, err)

	_, err = NewProviderFromKeys(nil, &other.PublicKey, time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	key := newKeys(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewProviderFromKeys(nil, &key.PublicKey, time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_SubjectFallback(t *testing.T) {
	key := newKeys(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)

	claims, err := NewProviderFromKeys(nil, &key.PublicKey, time.Hour).Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
}

func TestSign_WithoutPrivateKey(t *testing.T) {
	key := newKeys(t)
	_, err := NewProviderFromKeys(nil, &key.PublicKey, time.Hour).Sign("user-1")
	assert.Error(t, err)
}
