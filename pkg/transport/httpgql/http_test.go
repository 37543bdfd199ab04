package httpgql

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/gqlx/pkg/gql"
)

func TestTransport_Send(t *testing.T) {
	var gotAuth, gotCT, gotUA string
	var gotBody gql.Request
	srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"products":[1,2]}}`))
	}))
	defer srv.Close()

	tr, err := NewTransport(Opts{URL: srv.URL})
	require.NoError(t, err)
	defer tr.Close()

	h := stdhttp.Header{}
	h.Set("Authorization", "Bearer a.b.c")
	resp, err := tr.Send(context.Background(), &gql.Request{
		Query:     "{ products { id } }",
		Variables: map[string]any{"page": 1},
		Header:    h,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":[1,2]}`, string(resp.Data))
	assert.Equal(t, "Bearer a.b.c", gotAuth)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, defaultUserAgent, gotUA)
	assert.Equal(t, "{ products { id } }", gotBody.Query)
	assert.EqualValues(t, 1, gotBody.Variables["page"])
}

func TestTransport_Send_errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ct     string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: 502,
			ct:     "text/plain",
			body:   "bad gateway",
			check: func(t *testing.T, err error) {
				var se *gql.StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 502, se.StatusCode)
				assert.Nil(t, se.Response)
			},
		},
		{
			name:   "unauthorized with envelope",
			status: 401,
			ct:     "application/json",
			body:   `{"errors":[{"message":"not authorized","extensions":{"code":"UNAUTHENTICATED"}}]}`,
			check: func(t *testing.T, err error) {
				var se *gql.StatusError
				require.True(t, errors.As(err, &se))
				require.NotNil(t, se.Response)
				assert.Equal(t, "UNAUTHENTICATED", se.Response.Errors[0].Code())
			},
		},
		{
			name:   "html body",
			status: 200,
			ct:     "text/html",
			body:   "<html></html>",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, gql.ErrBadEnvelope)
			},
		},
		{
			name:   "empty envelope",
			status: 200,
			ct:     "application/json",
			body:   `{}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, gql.ErrBadEnvelope)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
				w.Header().Set("Content-Type", tt.ct)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr, err := NewTransport(Opts{URL: srv.URL})
			require.NoError(t, err)
			defer tr.Close()

			_, err = tr.Send(context.Background(), &gql.Request{Query: "{ a }"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTransport_Send_bodyLimit(t *testing.T) {
	srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"s":"0123456789012345678901234567890123456789"}}`))
	}))
	defer srv.Close()

	tr, err := NewTransport(Opts{URL: srv.URL, MaxBodySize: 16})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Send(context.Background(), &gql.Request{Query: "{ s }"})
	assert.ErrorIs(t, err, gql.ErrBadEnvelope)
}

func TestNewTransport_badURL(t *testing.T) {
	_, err := NewTransport(Opts{URL: "ftp://example.com"})
	assert.Error(t, err)
}
