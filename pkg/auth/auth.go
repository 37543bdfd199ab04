// Package auth builds the request headers for the current session and owns
// the lifecycle of its bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pmkol/gqlx/pkg/credential"
)

const (
	contentTypeJSON = "application/json"
	bearerPrefix    = "Bearer "
	tokenSep        = "."
)

var (
	nopLogger = zap.NewNop()

	ErrMalformedToken = errors.New("malformed token")
)

// ValidToken reports whether token has exactly three non-empty segments
// separated by dots, as a signed token does. The signature is not checked.
func ValidToken(token string) bool {
	parts := strings.Split(token, tokenSep)
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 {
			return false
		}
	}
	return true
}

type ProviderOpts struct {
	// Store cannot be nil.
	Store credential.Store

	// Key of the token in Store. Default is credential.DefaultKey.
	Key string

	// Logger is optional.
	Logger *zap.Logger
}

// Provider computes the header set of every outgoing request from the
// credential currently in the store. It keeps no copy of the token, so a
// token removed by anyone is gone for the very next call.
type Provider struct {
	store  credential.Store
	key    string
	logger *zap.Logger
}

func NewProvider(opts ProviderOpts) (*Provider, error) {
	if opts.Store == nil {
		return nil, errors.New("nil credential store")
	}
	if len(opts.Key) == 0 {
		opts.Key = credential.DefaultKey
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return &Provider{store: opts.Store, key: opts.Key, logger: opts.Logger}, nil
}

func baseHeader() http.Header {
	h := make(http.Header, 2)
	h.Set("Content-Type", contentTypeJSON)
	return h
}

// Headers returns the base header set plus an Authorization header when a
// well formed token is stored. A malformed token is removed from the store.
func (p *Provider) Headers(ctx context.Context) http.Header {
	h := baseHeader()

	token, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("failed to read credential", zap.Error(err))
		return h
	}
	if !ok || len(token) == 0 {
		return h
	}
	if !ValidToken(token) {
		p.logger.Warn("malformed credential dropped")
		if err := p.store.Remove(ctx, p.key); err != nil {
			p.logger.Warn("failed to remove credential", zap.Error(err))
		}
		return h
	}
	h.Set("Authorization", bearerPrefix+token)
	return h
}

// Clear removes the stored token.
func (p *Provider) Clear(ctx context.Context) error {
	return p.store.Remove(ctx, p.key)
}

// Session groups the operations that set or drop the token: login,
// registration and logout.
type Session struct {
	p *Provider
}

func NewSession(p *Provider) *Session {
	return &Session{p: p}
}

// Login stores token. Registration uses the same call.
func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if !ValidToken(token) {
		return ErrMalformedToken
	}
	return s.p.store.Set(ctx, s.p.key, token)
}

func (s *Session) Logout(ctx context.Context) error {
	return s.p.Clear(ctx)
}

// Token returns the stored token as is, without validation.
func (s *Session) Token(ctx context.Context) (string, bool, error) {
	return s.p.store.Get(ctx, s.p.key)
}

// Redact shortens a token so that it can appear in logs.
func Redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
