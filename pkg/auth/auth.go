// Package auth validates the HMAC-signed bearer tokens issued by the account
// service.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, expired or foreign tokens.
var ErrUnauthorized = errors.New("unauthorized")

// User is the identity carried by a token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks token signatures with a shared secret.
type Validator struct {
	secret []byte
	method jwt.SigningMethod
}

// NewValidator creates a validator for one of HS256, HS384 or HS512.
func NewValidator(secret, algorithm string) (*Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if algorithm == "" {
		algorithm = "HS256"
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
	return &Validator{secret: []byte(secret), method: method}, nil
}

// Validate parses token and returns its user. Tokens without a subject are
// rejected.
func (v *Validator) Validate(token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return &User{ID: c.Subject, Email: c.Email}, nil
}

// Issue signs a token for user. A zero ttl issues a token without expiry.
func (v *Validator) Issue(user User, ttl time.Duration) (string, error) {
	c := claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(v.method, c).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrUnauthorized
	}
	return strings.TrimSpace(token), nil
}
