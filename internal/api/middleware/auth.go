package middleware

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/lt-indexer/internal/api/shared/errors"
	"github.com/feral-file/lt-indexer/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	AUTH_TYPE_KEY    contextKey = "auth_type"
	AUTH_SUBJECT_KEY contextKey = "auth_subject"
)

const (
	AuthTypeJWT    = "jwt"
	AuthTypeAPIKey = "apikey"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string // RSA public key in PEM format
	APIKeys      []string
}

// authenticator validates Authorization headers against a parsed AuthConfig
type authenticator struct {
	publicKey    *rsa.PublicKey
	publicKeyErr error
	apiKeys      map[string]struct{}
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{apiKeys: make(map[string]struct{})}
	for _, key := range cfg.APIKeys {
		if key != "" {
			a.apiKeys[key] = struct{}{}
		}
	}

	if cfg.JWTPublicKey == "" {
		a.publicKeyErr = errors.New("JWT public key not configured")
	} else {
		a.publicKey, a.publicKeyErr = parseRSAPublicKey(cfg.JWTPublicKey)
	}
	return a
}

// authenticate returns the auth type and subject of a valid Authorization header
func (a *authenticator) authenticate(header string) (string, string, error) {
	if header == "" {
		return "", "", errors.New("missing Authorization header")
	}

	scheme, credentials, ok := strings.Cut(header, " ")
	if !ok {
		return "", "", errors.New("invalid Authorization header format")
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		claims, err := a.validateJWT(credentials)
		if err != nil {
			return "", "", err
		}
		return AuthTypeJWT, claims.Subject, nil

	case "apikey":
		if len(a.apiKeys) == 0 {
			return "", "", errors.New("no API keys configured")
		}
		if _, ok := a.apiKeys[credentials]; !ok {
			return "", "", errors.New("invalid API key")
		}
		return AuthTypeAPIKey, "", nil

	default:
		return "", "", fmt.Errorf("unsupported authorization type: %s", scheme)
	}
}

// validateJWT validates an RS256 token. Expiry and not-before are checked by the parser.
func (a *authenticator) validateJWT(tokenString string) (*jwt.RegisteredClaims, error) {
	if a.publicKeyErr != nil {
		return nil, a.publicKeyErr
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Auth returns a gin middleware accepting either a JWT (Bearer) or an API key (ApiKey)
func Auth(cfg AuthConfig) gin.HandlerFunc {
	a := newAuthenticator(cfg)
	if a.publicKeyErr != nil && cfg.JWTPublicKey != "" {
		logger.Warn("JWT authentication disabled", zap.Error(a.publicKeyErr))
	}

	return func(c *gin.Context) {
		authType, subject, err := a.authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewUnauthorizedError("Authentication failed", err.Error()))
			return
		}

		c.Set(string(AUTH_TYPE_KEY), authType)
		if subject != "" {
			c.Set(string(AUTH_SUBJECT_KEY), subject)
		}
		logger.DebugCtx(c.Request.Context(), "Authentication successful",
			zap.String("auth_type", authType),
			zap.String("subject", subject),
			zap.String("path", c.Request.URL.Path),
		)

		c.Next()
	}
}

// parseRSAPublicKey parses an RSA public key in PKIX or PKCS1 PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return rsaKey, nil
}
