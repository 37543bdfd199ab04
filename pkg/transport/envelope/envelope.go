// Package envelope encodes GraphQL requests and decodes HTTP response bodies
// into GraphQL envelopes. It is shared by the HTTP transports.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/pmkol/gqlx/pkg/gql"
)

const (
	ContentTypeJSON = "application/json"
	// ContentTypeGraphQLResponse is the media type of the GraphQL over HTTP
	// draft.
	ContentTypeGraphQLResponse = "application/graphql-response+json"

	Accept = ContentTypeGraphQLResponse + ", " + ContentTypeJSON

	DefaultMaxBodySize = 4 << 20
)

// EncodeRequest writes the JSON body of req into buf.
func EncodeRequest(buf *bytes.Buffer, req *gql.Request) error {
	return json.NewEncoder(buf).Encode(req)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == ContentTypeJSON || mt == ContentTypeGraphQLResponse || strings.HasSuffix(mt, "+json")
}

// ReadBody reads at most maxSize bytes from r.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	b, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxSize {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes: %w", maxSize, gql.ErrBadEnvelope)
	}
	return b, nil
}

// Decode turns an HTTP response into a GraphQL response or error.
// Non 2xx statuses give a *gql.StatusError that still carries the envelope
// when the body had one.
func Decode(statusCode int, status, contentType string, body []byte) (*gql.Response, error) {
	var resp *gql.Response
	var decodeErr error
	switch {
	case len(body) == 0:
		decodeErr = fmt.Errorf("empty response: %w", gql.ErrBadEnvelope)
	case !isJSON(contentType):
		decodeErr = fmt.Errorf("invalid content-type %q: %w", contentType, gql.ErrBadEnvelope)
	default:
		resp = new(gql.Response)
		if err := json.Unmarshal(body, resp); err != nil {
			resp = nil
			decodeErr = fmt.Errorf("%w: %v", gql.ErrBadEnvelope, err)
		} else if len(resp.Data) == 0 && len(resp.Errors) == 0 {
			resp = nil
			decodeErr = fmt.Errorf("response has neither data nor errors: %w", gql.ErrBadEnvelope)
		}
	}

	if statusCode < 200 || statusCode > 299 {
		return nil, &gql.StatusError{StatusCode: statusCode, Status: status, Response: resp}
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return resp, nil
}
