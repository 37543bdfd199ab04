package h3gql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport(t *testing.T) {
	_, err := NewTransport(Opts{URL: "http://example.com/graphql"})
	assert.Error(t, err)

	_, err = NewTransport(Opts{URL: "://bad"})
	assert.Error(t, err)

	tr, err := NewTransport(Opts{URL: "https://example.com/graphql"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/graphql", tr.urlStr)
	assert.Equal(t, defaultUserAgent, tr.userAgent)
	assert.NotNil(t, tr.transport)
	assert.NoError(t, tr.Close())
}
