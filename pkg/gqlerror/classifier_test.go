package gqlerror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/gqlx/pkg/gql"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(Opts{})

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout sentinel", ErrTimeout, KindNetwork},
		{"wrapped timeout", fmt.Errorf("attempt 1: %w", ErrTimeout), KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"canceled", context.Canceled, KindNetwork},
		{"conn refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("boom")}, KindNetwork},
		{"message hint", errors.New("Network request failed"), KindNetwork},
		{"status 401", &gql.StatusError{StatusCode: 401}, KindAuthentication},
		{"status 403", &gql.StatusError{StatusCode: 403}, KindAuthentication},
		{"status 500", &gql.StatusError{StatusCode: 500}, KindServer},
		{"status 500 with auth error body", &gql.StatusError{StatusCode: 500, Response: &gql.Response{
			Errors: []gql.Error{{Message: "x", Extensions: map[string]any{"code": "UNAUTHENTICATED"}}},
		}}, KindAuthentication},
		{"auth category", &gql.ResponseError{Errors: []gql.Error{
			{Message: "The current customer isn't authorized.", Extensions: map[string]any{"category": "graphql-authorization"}},
		}}, KindAuthentication},
		{"auth message only", &gql.ResponseError{Errors: []gql.Error{{Message: "Signature has expired"}}}, KindAuthentication},
		{"validation", &gql.ResponseError{Errors: []gql.Error{{Message: "Field \"x\" is not defined"}}}, KindValidation},
		{"validation mentioning network", &gql.ResponseError{Errors: []gql.Error{{Message: "network of stores unavailable"}}}, KindValidation},
		{"bad envelope", fmt.Errorf("decode: %w", gql.ErrBadEnvelope), KindServer},
		{"unknown", errors.New("something odd"), KindUnknown},
		{"already classified", &Error{Kind: KindServer}, KindServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestClassify_customAuthCodes(t *testing.T) {
	c := NewClassifier(Opts{AuthCodes: []string{"SESSION_GONE"}})
	err := &gql.ResponseError{Errors: []gql.Error{{Message: "bye", Extensions: map[string]any{"code": "session_gone"}}}}
	assert.Equal(t, KindAuthentication, c.Classify(err))
	err = &gql.ResponseError{Errors: []gql.Error{{Message: "x", Extensions: map[string]any{"code": "UNAUTHENTICATED"}}}}
	assert.Equal(t, KindValidation, c.Classify(err))
}

type fakeCreds struct {
	cleared int
	err     error
}

func (f *fakeCreds) Clear(context.Context) error {
	f.cleared++
	return f.err
}

type fakeCache struct{ cleared int }

func (f *fakeCache) Clear() { f.cleared++ }

func TestHandle_authentication(t *testing.T) {
	creds, cache := &fakeCreds{err: errors.New("store down")}, &fakeCache{}
	c := NewClassifier(Opts{Credentials: creds, Cache: cache})

	e := c.Handle(context.Background(), &gql.StatusError{StatusCode: 401}, "query Me")
	assert.Equal(t, KindAuthentication, e.Kind)
	assert.Equal(t, DefaultMessages.Authentication, e.Message)
	assert.Equal(t, 1, creds.cleared)
	assert.Equal(t, 1, cache.cleared)

	var se *gql.StatusError
	assert.ErrorAs(t, e, &se, "cause must be preserved")
}

func TestHandle_noSideEffectsForOtherKinds(t *testing.T) {
	creds, cache := &fakeCreds{}, &fakeCache{}
	c := NewClassifier(Opts{Credentials: creds, Cache: cache})
	for _, err := range []error{ErrTimeout, &gql.StatusError{StatusCode: 502}, errors.New("odd")} {
		c.Handle(context.Background(), err, "")
	}
	assert.Zero(t, creds.cleared)
	assert.Zero(t, cache.cleared)
	assert.Equal(t, 3, c.Log().Len())
}

func TestHandle_validation(t *testing.T) {
	c := NewClassifier(Opts{})
	errs := []gql.Error{{Message: "first"}, {Message: "second"}}
	e := c.Handle(context.Background(), &gql.ResponseError{Errors: errs}, "")
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "first", e.Message)
	assert.Equal(t, errs, e.Errors)
}

func TestHandle_messages(t *testing.T) {
	c := NewClassifier(Opts{Messages: Messages{Network: "offline"}})
	assert.Equal(t, "offline", c.Handle(context.Background(), ErrTimeout, "").Message)
	assert.Equal(t, DefaultMessages.Server, c.Handle(context.Background(), &gql.StatusError{StatusCode: 500}, "").Message)
	assert.Equal(t, DefaultMessages.Unknown, c.Handle(context.Background(), errors.New("x"), "").Message)
}

type panicCache struct{}

func (panicCache) Clear() { panic("cache exploded") }

func TestHandle_neverPanics(t *testing.T) {
	c := NewClassifier(Opts{Cache: panicCache{}})
	var e *Error
	require.NotPanics(t, func() {
		e = c.Handle(context.Background(), &gql.StatusError{StatusCode: 401}, "x")
	})
	assert.Equal(t, KindUnknown, e.Kind)
	entries := c.Log().Entries()
	require.NotEmpty(t, entries)
	assert.NotEmpty(t, entries[0].Stack)
}

func TestHandle_recordsScrubbedDetail(t *testing.T) {
	c := NewClassifier(Opts{})
	c.Handle(context.Background(), errors.New("request with Bearer aaa.bbb.ccc failed: timeout"), "q")
	r := c.Log().Entries()[0]
	assert.Equal(t, KindNetwork, r.Kind)
	assert.Equal(t, "q", r.Label)
	assert.NotContains(t, r.Detail, "aaa.bbb.ccc")
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Time.IsZero())
}

func TestKind(t *testing.T) {
	assert.True(t, KindNetwork.Retryable())
	for _, k := range []Kind{KindAuthentication, KindValidation, KindServer, KindUnknown} {
		assert.False(t, k.Retryable(), k.String())
	}
	assert.Equal(t, "unknown", Kind(42).String())

	b, err := json.Marshal(struct{ K Kind }{KindServer})
	require.NoError(t, err)
	assert.JSONEq(t, `{"K":"server"}`, string(b))
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(fmt.Errorf("wrapped: %w", &Error{Kind: KindValidation}))
	assert.True(t, ok)
	assert.Equal(t, KindValidation, k)
	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
