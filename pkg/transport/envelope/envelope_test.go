package envelope

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/gqlx/pkg/gql"
)

func TestEncodeRequest(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, EncodeRequest(buf, &gql.Request{Query: "{ a }"}))
	assert.JSONEq(t, `{"query":"{ a }"}`, buf.String())
}

func TestDecode(t *testing.T) {
	resp, err := Decode(200, "200 OK", "application/json; charset=utf-8", []byte(`{"data":{"a":1}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(resp.Data))
	assert.False(t, resp.HasErrors())

	resp, err = Decode(200, "200 OK", ContentTypeGraphQLResponse, []byte(`{"data":null,"errors":[{"message":"boom"}]}`))
	require.NoError(t, err)
	assert.True(t, resp.HasErrors())

	_, err = Decode(200, "200 OK", "application/json", nil)
	assert.ErrorIs(t, err, gql.ErrBadEnvelope)

	_, err = Decode(200, "200 OK", "application/json", []byte(`{not json`))
	assert.ErrorIs(t, err, gql.ErrBadEnvelope)

	_, err = Decode(503, "503 Service Unavailable", "text/plain", []byte("down"))
	var se *gql.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 503, se.StatusCode)
	assert.False(t, errors.Is(err, gql.ErrBadEnvelope))
}

func TestReadBody(t *testing.T) {
	b, err := ReadBody(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(b))

	_, err = ReadBody(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, gql.ErrBadEnvelope)
}
