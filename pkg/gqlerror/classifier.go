package gqlerror

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

// CredentialClearer drops the session credential. auth.Provider implements it.
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

// CacheClearer drops every cached response. mem_cache.MemCache implements it.
type CacheClearer interface {
	Clear()
}

type Opts struct {
	// Credentials and Cache are cleared on authentication failures.
	// Both are optional.
	Credentials CredentialClearer
	Cache       CacheClearer

	// Log receives a record of every handled failure.
	// Default is a new Log with DefaultLogSize.
	Log *Log

	// Messages overrides the user facing messages. Empty fields keep
	// DefaultMessages.
	Messages Messages

	// AuthCodes are the GraphQL extension codes that mark an expired or
	// invalid credential. Default is DefaultAuthCodes.
	AuthCodes []string

	Logger *zap.Logger
}

// Classifier turns raw failures into terminal *Error values and applies the
// recovery action of each kind.
type Classifier struct {
	creds     CredentialClearer
	cache     CacheClearer
	log       *Log
	messages  Messages
	authCodes map[string]struct{}
	logger    *zap.Logger
}

func NewClassifier(opts Opts) *Classifier {
	if opts.Log == nil {
		opts.Log = NewLog(DefaultLogSize)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	codes := opts.AuthCodes
	if len(codes) == 0 {
		codes = DefaultAuthCodes
	}
	c := &Classifier{
		creds:     opts.Credentials,
		cache:     opts.Cache,
		log:       opts.Log,
		messages:  opts.Messages.withDefaults(),
		authCodes: make(map[string]struct{}, len(codes)),
		logger:    opts.Logger,
	}
	for _, code := range codes {
		c.authCodes[strings.ToLower(code)] = struct{}{}
	}
	return c
}

// Log returns the diagnostics log.
func (c *Classifier) Log() *Log {
	return c.log
}

// Handle classifies err, runs the recovery action of its kind, records it
// and returns the terminal error. label names the operation for diagnostics.
// Handle never panics.
func (c *Classifier) Handle(ctx context.Context, err error, label string) (out *Error) {
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic while handling error: %v (original: %w)", r, err)
			out = &Error{Kind: KindUnknown, Message: c.messages.Unknown, Cause: cause}
			c.record(out, label, debug.Stack())
		}
	}()

	if err == nil {
		err = fmt.Errorf("nil error handled")
	}
	if e, ok := err.(*Error); ok {
		return e
	}

	kind := c.Classify(err)
	out = &Error{Kind: kind, Message: c.messages.For(kind), Cause: err}

	switch kind {
	case KindAuthentication:
		c.recoverAuth(ctx)
	case KindValidation:
		if re := responseErrors(err); len(re) > 0 {
			out.Errors = re
			if len(re[0].Message) > 0 {
				out.Message = re[0].Message
			}
		}
	}

	var stack []byte
	if kind == KindUnknown {
		stack = debug.Stack()
	}
	c.record(out, label, stack)
	return out
}

func (c *Classifier) recoverAuth(ctx context.Context) {
	if c.creds != nil {
		if err := c.creds.Clear(ctx); err != nil {
			c.logger.Error("failed to clear rejected credential", zap.Error(err))
		}
	}
	if c.cache != nil {
		c.cache.Clear()
	}
	c.logger.Info("credential rejected, session and cache cleared")
}

func (c *Classifier) record(e *Error, label string, stack []byte) {
	detail := ""
	if e.Cause != nil {
		detail = Scrub(e.Cause.Error())
	}
	c.log.Append(Record{
		Kind:    e.Kind,
		Message: e.Message,
		Detail:  detail,
		Label:   label,
		Stack:   string(stack),
	})

	fields := []zap.Field{
		zap.Stringer("kind", e.Kind),
		zap.String("label", label),
		zap.String("detail", detail),
	}
	switch e.Kind {
	case KindServer, KindUnknown:
		c.logger.Error("request failed", fields...)
	default:
		c.logger.Warn("request failed", fields...)
	}
}
