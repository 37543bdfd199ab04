package gqlerror

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"github.com/pmkol/gqlx/pkg/gql"
)

// ErrTimeout is the failure of an attempt that lost the race against the
// request timeout.
var ErrTimeout = errors.New("request timeout")

// DefaultAuthCodes are extension codes/categories that mark a rejected
// credential.
var DefaultAuthCodes = []string{
	"graphql-authorization",
	"graphql-authentication",
	"UNAUTHENTICATED",
	"UNAUTHORIZED",
	"FORBIDDEN",
	"JWT_EXPIRED",
	"INVALID_TOKEN",
}

var authMessageHints = []string{
	"token has expired",
	"token expired",
	"signature has expired",
	"jwt expired",
	"invalid token",
	"isn't authorized",
	"not authorized",
	"unauthenticated",
}

var networkMessageHints = []string{
	"timeout",
	"timed out",
	"network",
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
	"eof",
	"failed to fetch",
}

// IsNetwork reports whether err is a timeout or a connection level failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	// A delivered response is never a network failure even if its text
	// mentions one.
	var re *gql.ResponseError
	var se *gql.StatusError
	if errors.As(err, &re) || errors.As(err, &se) {
		return false
	}
	if errors.Is(err, gql.ErrBadEnvelope) {
		return false
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, h := range networkMessageHints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}

func (c *Classifier) isAuthGQLError(e gql.Error) bool {
	if code := e.Code(); len(code) > 0 {
		if _, ok := c.authCodes[strings.ToLower(code)]; ok {
			return true
		}
	}
	msg := strings.ToLower(e.Message)
	for _, h := range authMessageHints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}

// Classify maps err to a Kind. It has no side effects.
func (c *Classifier) Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if k, ok := KindOf(err); ok {
		return k
	}

	var re *gql.ResponseError
	if errors.As(err, &re) {
		for _, e := range re.Errors {
			if c.isAuthGQLError(e) {
				return KindAuthentication
			}
		}
		return KindValidation
	}

	var se *gql.StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden {
			return KindAuthentication
		}
		if se.Response != nil {
			for _, e := range se.Response.Errors {
				if c.isAuthGQLError(e) {
					return KindAuthentication
				}
			}
		}
		return KindServer
	}

	if IsNetwork(err) {
		return KindNetwork
	}
	if errors.Is(err, gql.ErrBadEnvelope) {
		return KindServer
	}
	return KindUnknown
}

func responseErrors(err error) []gql.Error {
	var re *gql.ResponseError
	if errors.As(err, &re) {
		return re.Errors
	}
	var se *gql.StatusError
	if errors.As(err, &se) && se.Response != nil {
		return se.Response.Errors
	}
	return nil
}
