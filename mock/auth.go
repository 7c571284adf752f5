package mock

import (
	"context"

	"github.com/fwojciec/sitemapgen"
)

var _ sitemapgen.Authenticator = (*Authenticator)(nil)

// Authenticator is a mock implementation of sitemapgen.Authenticator.
type Authenticator struct {
	AuthenticateFn func(ctx context.Context, authorization string) (*sitemapgen.User, error)
	LoginFn        func(ctx context.Context, username, password string) (*sitemapgen.Token, error)
}

func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (*sitemapgen.User, error) {
	return a.AuthenticateFn(ctx, authorization)
}

func (a *Authenticator) Login(ctx context.Context, username, password string) (*sitemapgen.Token, error) {
	return a.LoginFn(ctx, username, password)
}
