package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/dispensa/pkg/core"
)

// ErrInvalidToken is returned for tokens that are malformed, expired, not
// signed with the configured secret, or missing the subject claim.
var ErrInvalidToken = errors.New("invalid token")

// TokenSource yields the raw token to sign in with.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields raw.
func StaticToken(raw string) TokenSource {
	return func(context.Context) (string, error) { return raw, nil }
}

// TokenOption configures a Token provider.
type TokenOption func(*Token)

// WithClock overrides the clock used to check expiry and issue tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Token) { t.now = now }
}

// Token signs in by verifying an HS256 JWT. Claims: sub (uid, required),
// email, name.
type Token struct {
	broadcaster
	secret []byte
	source TokenSource
	now    func() time.Time
}

var _ core.SessionProvider = (*Token)(nil)

// NewToken creates a provider that verifies tokens with secret.
func NewToken(secret []byte, source TokenSource, opts ...TokenOption) *Token {
	t := &Token{secret: secret, source: source, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SignIn implements core.SessionProvider.
func (t *Token) SignIn(ctx context.Context) (*core.Session, error) {
	if t.source == nil {
		return nil, fmt.Errorf("%w: no token source", ErrInvalidToken)
	}
	raw, err := t.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	session, err := t.Verify(raw)
	if err != nil {
		return nil, err
	}
	t.set(session)
	return session, nil
}

// SignOut implements core.SessionProvider.
func (t *Token) SignOut(context.Context) error {
	t.set(nil)
	return nil
}

// Verify checks raw and extracts the session it carries.
func (t *Token) Verify(raw string) (*core.Session, error) {
	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(t.now),
		gojwt.WithExpirationRequired(),
	)
	token, err := parser.Parse(raw, func(*gojwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := token.Claims.(gojwt.MapClaims)

	session := &core.Session{}
	if sub, ok := claims["sub"].(string); ok {
		session.UID = sub
	}
	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		session.DisplayName = name
	}
	if session.UID == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return session, nil
}

// Issue signs a token for s valid for ttl.
func (t *Token) Issue(s core.Session, ttl time.Duration) (string, error) {
	now := t.now()
	claims := gojwt.MapClaims{
		"sub": s.UID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if s.Email != "" {
		claims["email"] = s.Email
	}
	if s.DisplayName != "" {
		claims["name"] = s.DisplayName
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(t.secret)
}
