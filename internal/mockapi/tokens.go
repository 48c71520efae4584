package mockapi

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/session"
)

// tokenIssuer signs HS256 access tokens and keeps opaque refresh tokens in memory.
type tokenIssuer struct {
	secret       []byte
	accessExpiry time.Duration
	nowTime      func() time.Time

	mu      sync.Mutex
	refresh map[string]int64 // refresh token -> user id
}

func newTokenIssuer(secret string, accessExpiry time.Duration, nowTime func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		nowTime:      nowTime,
		refresh:      make(map[string]int64),
	}
}

func (ti *tokenIssuer) issue(userID int64) (session.Tokens, error) {
	access, err := ti.accessToken(userID)
	if err != nil {
		return session.Tokens{}, err
	}
	refresh := uuid.NewString()

	ti.mu.Lock()
	ti.refresh[refresh] = userID
	ti.mu.Unlock()
	return session.Tokens{Access: access, Refresh: refresh}, nil
}

func (ti *tokenIssuer) accessToken(userID int64) (string, error) {
	now := ti.nowTime()
	claims := jwtlib.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ti.accessExpiry)),
		ID:        uuid.NewString(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// verifyAccess returns the user id of a valid, unexpired access token.
func (ti *tokenIssuer) verifyAccess(token string) (int64, error) {
	claims := jwtlib.RegisteredClaims{}
	_, err := jwtlib.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return ti.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(ti.nowTime),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

// rotate swaps a refresh token for a new pair.
func (ti *tokenIssuer) rotate(refresh string) (session.Tokens, bool, error) {
	ti.mu.Lock()
	userID, ok := ti.refresh[refresh]
	if ok {
		delete(ti.refresh, refresh)
	}
	ti.mu.Unlock()
	if !ok {
		return session.Tokens{}, false, nil
	}
	tokens, err := ti.issue(userID)
	return tokens, true, err
}

func (ti *tokenIssuer) revoke(refresh string) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	_, ok := ti.refresh[refresh]
	delete(ti.refresh, refresh)
	return ok
}
