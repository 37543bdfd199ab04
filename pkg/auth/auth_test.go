package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/gqlx/pkg/credential"
)

func TestValidToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"aaa.bbb.ccc", true},
		{"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig", true},
		{"", false},
		{"abc", false},
		{"a.b", false},
		{"a.b.c.d", false},
		{"a..c", false},
		{".b.c", false},
		{"a.b.", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidToken(tt.token), tt.token)
	}
}

func newProvider(t *testing.T, s credential.Store) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderOpts{Store: s})
	require.NoError(t, err)
	return p
}

func TestHeaders(t *testing.T) {
	ctx := context.Background()
	s := credential.NewMemStore()
	p := newProvider(t, s)

	t.Run("no token", func(t *testing.T) {
		h := p.Headers(ctx)
		assert.Equal(t, "application/json", h.Get("Content-Type"))
		assert.Empty(t, h.Get("Authorization"))
	})

	t.Run("valid token", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, credential.DefaultKey, "a.b.c"))
		h := p.Headers(ctx)
		assert.Equal(t, "Bearer a.b.c", h.Get("Authorization"))
	})

	t.Run("malformed token is dropped", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, credential.DefaultKey, "garbage"))
		h := p.Headers(ctx)
		assert.Empty(t, h.Get("Authorization"))
		_, ok, _ := s.Get(ctx, credential.DefaultKey)
		assert.False(t, ok, "malformed token must be removed")
	})

	t.Run("removal is seen by the next call", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, credential.DefaultKey, "a.b.c"))
		assert.NotEmpty(t, p.Headers(ctx).Get("Authorization"))
		require.NoError(t, p.Clear(ctx))
		assert.Empty(t, p.Headers(ctx).Get("Authorization"))
	})
}

type brokenStore struct{ *credential.MemStore }

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("boom")
}

func TestHeaders_storeError(t *testing.T) {
	p := newProvider(t, &brokenStore{MemStore: credential.NewMemStore()})
	h := p.Headers(context.Background())
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, credential.NewMemStore())
	sess := NewSession(p)

	assert.ErrorIs(t, sess.Login(ctx, "nope"), ErrMalformedToken)
	require.NoError(t, sess.Login(ctx, " x.y.z \n"))

	tok, ok, err := sess.Token(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x.y.z", tok)

	require.NoError(t, sess.Logout(ctx))
	_, ok, _ = sess.Token(ctx)
	assert.False(t, ok)
}

func TestNewProvider_nilStore(t *testing.T) {
	_, err := NewProvider(ProviderOpts{})
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("a.b.c"))
	assert.Equal(t, "eyJh...sig1", Redact("eyJhbGciOi.payload.sig1"))
}
