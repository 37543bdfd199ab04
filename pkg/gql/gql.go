// Package gql holds the wire types shared by the executor and the transports.
package gql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrBadEnvelope is wrapped by transport errors whose response could not be
// read as a GraphQL response envelope.
var ErrBadEnvelope = errors.New("bad graphql response envelope")

// Transport sends one GraphQL request. Implementations must be safe for
// concurrent use and should honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`

	// Header is sent with the request. It is not part of the body.
	Header http.Header `json:"-"`
}

type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []Error         `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// HasErrors reports whether the response carries application level errors.
func (r *Response) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// Error is a GraphQL error object.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Code returns extensions.code, or extensions.category as used by some
// commerce backends, or "".
func (e Error) Code() string {
	for _, k := range [...]string{"code", "category"} {
		if s, ok := e.Extensions[k].(string); ok && len(s) > 0 {
			return s
		}
	}
	return ""
}

// ResponseError is returned for a response that was delivered but carries
// GraphQL errors.
type ResponseError struct {
	Errors []Error
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return "graphql: response has errors"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// StatusError is returned by HTTP transports for non 2xx responses.
type StatusError struct {
	StatusCode int
	Status     string

	// Response holds the decoded body if the server still sent an envelope.
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.StatusCode)
}
