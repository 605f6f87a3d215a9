package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Stateless CSRF protection: the server issues a short-lived signed token
// via GET /v1/csrf and mutating routes require it back in the X-CSRF-Token
// header. Nothing is stored server-side.

const csrfHeader = "X-CSRF-Token"

type csrfClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// CSRFIssuer signs and validates CSRF tokens.
type CSRFIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewCSRFIssuer creates an issuer with the given signing secret and token
// lifetime.
func NewCSRFIssuer(secret string, ttl time.Duration) *CSRFIssuer {
	return &CSRFIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a new CSRF token.
func (c *CSRFIssuer) Issue() (string, error) {
	now := time.Now()
	claims := csrfClaims{
		Type: "csrf",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Issuer:    "dash-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate checks the signature, expiry and token type.
func (c *CSRFIssuer) Validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &csrfClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid or expired CSRF token: %w", err)
	}

	claims, ok := token.Claims.(*csrfClaims)
	if !ok || !token.Valid || claims.Type != "csrf" {
		return fmt.Errorf("invalid CSRF token")
	}
	return nil
}

// csrfTokenHandler issues a fresh token: GET /v1/csrf.
func csrfTokenHandler(issuer *CSRFIssuer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := issuer.Issue()
		if err != nil {
			logger.Error("failed to issue CSRF token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to issue CSRF token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	}
}

// CSRFMiddleware rejects mutating requests without a valid X-CSRF-Token.
func CSRFMiddleware(issuer *CSRFIssuer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(csrfHeader)
			if token == "" {
				logger.Warn("csrf: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusForbidden, "CSRF token required")
				return
			}
			if err := issuer.Validate(token); err != nil {
				logger.Warn("csrf: invalid token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusForbidden, "invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
