package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAuthenticate_JWT(t *testing.T) {
	key, publicKeyPEM := generateKey(t)
	a := newAuthenticator(AuthConfig{JWTPublicKey: publicKeyPEM})

	token := sign(t, jwt.SigningMethodRS256, key, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	authType, subject, err := a.authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, AuthTypeJWT, authType)
	assert.Equal(t, "ops", subject)
}

func TestAuthenticate_RejectsHMAC(t *testing.T) {
	_, publicKeyPEM := generateKey(t)
	a := newAuthenticator(AuthConfig{JWTPublicKey: publicKeyPEM})

	token := sign(t, jwt.SigningMethodHS256, []byte(publicKeyPEM), jwt.RegisteredClaims{Subject: "ops"})

	_, _, err := a.authenticate("Bearer " + token)
	assert.Error(t, err)
}

func TestAuthenticate_OtherKey(t *testing.T) {
	_, publicKeyPEM := generateKey(t)
	other, _ := generateKey(t)
	a := newAuthenticator(AuthConfig{JWTPublicKey: publicKeyPEM})

	token := sign(t, jwt.SigningMethodRS256, other, jwt.RegisteredClaims{Subject: "ops"})

	_, _, err := a.authenticate("Bearer " + token)
	assert.Error(t, err)
}

func TestAuthenticate_APIKey(t *testing.T) {
	a := newAuthenticator(AuthConfig{APIKeys: []string{"k1", ""}})

	authType, subject, err := a.authenticate("ApiKey k1")
	require.NoError(t, err)
	assert.Equal(t, AuthTypeAPIKey, authType)
	assert.Empty(t, subject)

	_, _, err = a.authenticate("ApiKey ")
	assert.Error(t, err)

	// JWT is disabled without a public key
	_, _, err = a.authenticate("Bearer abc")
	assert.EqualError(t, err, "JWT public key not configured")
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	a := newAuthenticator(AuthConfig{APIKeys: []string{"k1"}})

	for _, header := range []string{"", "k1", "Basic dXNlcjpwYXNz"} {
		_, _, err := a.authenticate(header)
		assert.Error(t, err, header)
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key, pkix := generateKey(t)

	parsed, err := parseRSAPublicKey(pkix)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	parsed, err = parseRSAPublicKey(string(pkcs1))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))

	_, err = parseRSAPublicKey("not a pem")
	assert.Error(t, err)
}
