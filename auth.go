package sitemapgen

import "context"

// User is the authenticated caller of the API.
type User struct {
	Username string `json:"username"`
}

// Token is a bearer token issued by Login.
type Token struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

// Authenticator verifies request credentials.
type Authenticator interface {
	// Authenticate validates the value of an Authorization header.
	// Returns EUNAUTHORIZED if the credentials are missing or wrong.
	Authenticate(ctx context.Context, authorization string) (*User, error)

	// Login exchanges a username and password for a bearer token.
	// Returns EINVALID if token authentication is not enabled.
	Login(ctx context.Context, username, password string) (*Token, error)
}
