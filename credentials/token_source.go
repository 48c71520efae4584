package credentials

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// TokenSource exposes the stored access token as an oauth2.TokenSource so the
// HTTP client can attach it. It never refreshes; an expired token is returned
// as-is and the server decides.
type TokenSource struct {
	ctx   context.Context
	store Store
}

var _ oauth2.TokenSource = TokenSource{}

func NewTokenSource(ctx context.Context, store Store) TokenSource {
	return TokenSource{ctx: ctx, store: store}
}

func (ts TokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.store.LoadAccess(ts.ctx)
	if err != nil {
		return nil, err
	}
	refresh, err := ts.store.LoadRefresh(ts.ctx)
	if err != nil && !errors.Is(err, ErrNoToken) {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
	}
	if exp, ok := ExpiresAt(access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

// ExpiresAt reads the exp claim of a JWT access token without verifying its
// signature. Opaque tokens report ok=false.
func ExpiresAt(access string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
