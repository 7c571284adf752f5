// Package jwt implements sitemapgen.Authenticator with static credentials
// checked from Basic headers or exchanged for HS256 tokens using
// golang-jwt/jwt.
package jwt

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/sitemapgen"
	"github.com/golang-jwt/jwt/v5"
)

// Authentication modes.
const (
	ModeBasic = "basic"
	ModeJWT   = "jwt"
)

// DefaultExpiry is the lifetime of issued tokens.
const DefaultExpiry = 24 * time.Hour

var _ sitemapgen.Authenticator = (*Authenticator)(nil)

// Claims are the claims carried by issued tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config configures an Authenticator.
type Config struct {
	Mode     string
	Username string
	Password string
	Secret   []byte
	Expiry   time.Duration
}

// Authenticator validates Authorization headers against a single
// configured account.
type Authenticator struct {
	config Config

	// Now returns the token issue time. Defaults to time.Now.
	Now func() time.Time
}

// NewAuthenticator returns an Authenticator for cfg.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	switch cfg.Mode {
	case ModeBasic:
	case ModeJWT:
		if len(cfg.Secret) == 0 {
			return nil, fmt.Errorf("jwt mode requires a secret")
		}
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	return &Authenticator{config: cfg}, nil
}

// Authenticate validates the Authorization header for the configured mode.
func (a *Authenticator) Authenticate(_ context.Context, authorization string) (*sitemapgen.User, error) {
	if authorization == "" {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Authentication required")
	}
	if a.config.Mode == ModeBasic {
		return a.authenticateBasic(authorization)
	}
	return a.authenticateBearer(authorization)
}

func (a *Authenticator) authenticateBasic(authorization string) (*sitemapgen.User, error) {
	encoded, ok := strings.CutPrefix(authorization, "Basic ")
	if !ok {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Expected Basic authentication")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Invalid authentication format")
	}
	username, password, _ := strings.Cut(string(decoded), ":")
	if !a.validCredentials(username, password) {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Invalid credentials")
	}
	return &sitemapgen.User{Username: username}, nil
}

func (a *Authenticator) authenticateBearer(authorization string) (*sitemapgen.User, error) {
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Expected Bearer token")
	}
	claims, err := a.validate(strings.TrimSpace(token))
	if err != nil {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Token is invalid or expired")
	}
	return &sitemapgen.User{Username: claims.Username}, nil
}

// Login issues a token for valid credentials. Only available in jwt mode.
func (a *Authenticator) Login(_ context.Context, username, password string) (*sitemapgen.Token, error) {
	if a.config.Mode != ModeJWT {
		return nil, sitemapgen.Errorf(sitemapgen.EINVALID, "JWT authentication not enabled")
	}
	if !a.validCredentials(username, password) {
		return nil, sitemapgen.Errorf(sitemapgen.EUNAUTHORIZED, "Invalid credentials")
	}

	now := a.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &sitemapgen.Token{Token: signed, ExpiresIn: a.config.Expiry.String()}, nil
}

// validate parses a token and returns its claims.
func (a *Authenticator) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.Secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *Authenticator) validCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.config.Password)) == 1
	return userOK && passOK
}

func (a *Authenticator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
