package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pmkol/gqlx/pkg/cache"
	"github.com/pmkol/gqlx/pkg/gql"
	"github.com/pmkol/gqlx/pkg/gqlerror"
	"github.com/pmkol/gqlx/pkg/pool"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 2
	DefaultBackoffUnit = time.Second
)

var nopLogger = zap.NewNop()

// CachePolicy decides which queries are cached, under which key and for how
// long. *policy.Policy implements it.
type CachePolicy interface {
	IsCacheable(query string) bool
	Key(query string, vars map[string]any) (string, error)
	TTL(query string) time.Duration
}

// HeaderProvider builds the headers of one attempt. *auth.Provider
// implements it.
type HeaderProvider interface {
	Headers(ctx context.Context) http.Header
}

type Opts struct {
	// Transport, Policy and Classifier are required.
	Transport  gql.Transport
	Policy     CachePolicy
	Classifier *gqlerror.Classifier

	// Cache is optional. Nothing is cached if it is nil.
	Cache cache.Backend

	// Headers is optional.
	Headers HeaderProvider

	// Timeout of a single attempt. Default is DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for network
	// failures. Zero means DefaultMaxRetries, a negative value disables retries.
	MaxRetries int

	// BackoffUnit is multiplied by 2^attempt between retries.
	// Default is DefaultBackoffUnit.
	BackoffUnit time.Duration

	// Clock is used for cache expiry. Default is time.Now.
	Clock func() time.Time

	Logger     *zap.Logger
	MetricsReg prometheus.Registerer
}

// Executor is the entry point for GraphQL requests. It is safe for
// concurrent use.
type Executor struct {
	transport   gql.Transport
	policy      atomic.Pointer[policyHolder]
	classifier  *gqlerror.Classifier
	cache       cache.Backend
	headers     HeaderProvider
	timeout     time.Duration
	maxRetries  int
	backoffUnit time.Duration
	now         func() time.Time
	logger      *zap.Logger
	metrics     *metrics

	sf singleflight.Group
}

type policyHolder struct {
	CachePolicy
}

func New(opts Opts) (*Executor, error) {
	if opts.Transport == nil {
		return nil, errors.New("missing transport")
	}
	if opts.Policy == nil {
		return nil, errors.New("missing cache policy")
	}
	if opts.Classifier == nil {
		return nil, errors.New("missing error classifier")
	}

	e := &Executor{
		transport:   opts.Transport,
		classifier:  opts.Classifier,
		cache:       opts.Cache,
		headers:     opts.Headers,
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoffUnit: opts.BackoffUnit,
		now:         opts.Clock,
		logger:      opts.Logger,
	}
	e.policy.Store(&policyHolder{opts.Policy})
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	switch {
	case e.maxRetries == 0:
		e.maxRetries = DefaultMaxRetries
	case e.maxRetries < 0:
		e.maxRetries = 0
	}
	if e.backoffUnit <= 0 {
		e.backoffUnit = DefaultBackoffUnit
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = nopLogger
	}

	m, err := newMetrics(opts.MetricsReg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics, %w", err)
	}
	e.metrics = m
	return e, nil
}

// SetPolicy replaces the cache policy. Requests in flight keep the policy
// they started with.
func (e *Executor) SetPolicy(p CachePolicy) {
	if p == nil {
		return
	}
	e.policy.Store(&policyHolder{p})
}

// Stats returns the cache counters. It returns a zero Stats if there is no
// cache.
func (e *Executor) Stats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// ClearCache drops every cached response.
func (e *Executor) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Classifier returns the classifier failures are routed through.
func (e *Executor) Classifier() *gqlerror.Classifier {
	return e.classifier
}

type call struct {
	query  string
	vars   map[string]any
	label  string
	policy CachePolicy
	key    string // Empty if the query is not cached.
	header http.Header
}

type result struct {
	resp *gql.Response
	raw  []byte
	err  error
}

// Execute runs query with vars.
// On success it returns the response and a nil error. A response that carries
// GraphQL errors is returned together with a *gqlerror.Error of kind
// KindValidation or KindAuthentication. Every other failure is a
// *gqlerror.Error with a nil response.
func (e *Executor) Execute(ctx context.Context, query string, vars map[string]any) (*gql.Response, error) {
	start := time.Now()
	c := &call{
		query:  query,
		vars:   vars,
		label:  operationLabel(query),
		policy: e.policy.Load().CachePolicy,
	}

	if c.policy.IsCacheable(query) && e.cache != nil {
		key, err := c.policy.Key(query, vars)
		if err != nil {
			e.logger.Debug("query not cached, bad variables", zap.String("label", c.label), zap.Error(err))
		} else {
			c.key = key
		}
	}

	// Headers come first so that a malformed credential is dropped even
	// when the response is served from the cache.
	c.header = e.headerSet(ctx)

	var r result
	if len(c.key) > 0 {
		if resp, ok := e.lookup(c.key); ok {
			e.metrics.observe(outcomeHit, start)
			return resp, nil
		}
		r = e.runShared(ctx, c)
	} else {
		r = e.run(ctx, c)
	}

	e.metrics.observe(outcomeOf(r.err), start)
	return r.resp, r.err
}

// runShared coalesces identical cacheable misses. The shared attempt loop is
// not bound to any caller's cancellation, each caller only stops waiting
// when its own ctx is done.
func (e *Executor) runShared(ctx context.Context, c *call) result {
	ch := e.sf.DoChan(c.key, func() (interface{}, error) {
		return e.run(context.WithoutCancel(ctx), c), nil
	})

	select {
	case res := <-ch:
		r := res.Val.(result)
		if res.Shared && r.resp != nil {
			// Each caller gets its own copy.
			r.resp = cloneResponse(r)
		}
		return r
	case <-ctx.Done():
		return result{err: e.classifier.Handle(ctx, fmt.Errorf("request abandoned by caller: %w", ctx.Err()), c.label)}
	}
}

func cloneResponse(r result) *gql.Response {
	raw := r.raw
	if raw == nil {
		b, err := json.Marshal(r.resp)
		if err != nil {
			return r.resp
		}
		raw = b
	}
	resp, err := decode(raw)
	if err != nil {
		return r.resp
	}
	return resp
}

func (e *Executor) headerSet(ctx context.Context) http.Header {
	if e.headers == nil {
		return nil
	}
	return e.headers.Headers(ctx)
}

func (e *Executor) lookup(key string) (*gql.Response, bool) {
	b, ok := e.cache.Get(key)
	if !ok {
		e.metrics.cacheMisses.Inc()
		return nil, false
	}
	resp, err := decode(b)
	if err != nil {
		e.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		e.cache.Delete(key)
		e.metrics.cacheMisses.Inc()
		return nil, false
	}
	e.metrics.cacheHits.Inc()
	return resp, true
}

// run is the attempt loop. Attempts are strictly sequential.
func (e *Executor) run(ctx context.Context, c *call) result {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && len(c.key) > 0 {
			// Another caller may have stored it while we were backing off.
			if resp, ok := e.lookup(c.key); ok {
				return result{resp: resp}
			}
		}

		req := &gql.Request{Query: c.query, Variables: c.vars, Header: c.header}
		if attempt > 0 {
			req.Header = e.headerSet(ctx)
		}

		e.metrics.attempts.Inc()
		resp, err := e.send(ctx, req)
		if err == nil {
			return e.handleResponse(ctx, c, resp)
		}

		if gqlerror.IsNetwork(err) && attempt < e.maxRetries && ctx.Err() == nil {
			d := e.backoff(attempt)
			e.logger.Debug(
				"retrying request",
				zap.String("label", c.label),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", d),
				zap.Error(err),
			)
			if werr := sleep(ctx, d); werr != nil {
				return result{err: e.classifier.Handle(ctx, fmt.Errorf("retry aborted after %v: %w", err, werr), c.label)}
			}
			continue
		}
		return result{err: e.classifier.Handle(ctx, err, c.label)}
	}
}

func (e *Executor) handleResponse(ctx context.Context, c *call, resp *gql.Response) result {
	if resp == nil {
		return result{err: e.classifier.Handle(ctx, fmt.Errorf("transport returned no response: %w", gql.ErrBadEnvelope), c.label)}
	}
	if resp.HasErrors() {
		return result{resp: resp, err: e.classifier.Handle(ctx, &gql.ResponseError{Errors: resp.Errors}, c.label)}
	}

	if len(c.key) == 0 {
		return result{resp: resp}
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		e.logger.Warn("failed to encode response for cache", zap.String("label", c.label), zap.Error(err))
		return result{resp: resp}
	}
	ttl := c.policy.TTL(c.query)
	if ttl > 0 {
		e.cache.Set(c.key, raw, e.now().Add(ttl))
	}
	return result{resp: resp, raw: raw}
}

type sendResult struct {
	resp *gql.Response
	err  error
}

// send races the transport against the attempt timeout. The transport call
// gets a context that is cancelled once the race is over. Its result is
// dropped if it loses.
func (e *Executor) send(ctx context.Context, req *gql.Request) (*gql.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc := make(chan sendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rc <- sendResult{err: fmt.Errorf("transport panicked: %v", r)}
			}
		}()
		resp, err := e.transport.Send(ctx, req)
		rc <- sendResult{resp: resp, err: err}
	}()

	timer := pool.GetTimer(e.timeout)
	defer pool.ReleaseTimer(timer)

	select {
	case r := <-rc:
		return r.resp, r.err
	case <-timer.C:
		return nil, fmt.Errorf("no response within %v: %w", e.timeout, gqlerror.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	return e.backoffUnit << uint(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := pool.GetTimer(d)
	defer pool.ReleaseTimer(timer)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decode(b []byte) (*gql.Response, error) {
	resp := new(gql.Response)
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

const maxLabelLen = 64

// operationLabel returns the first line of the query, trimmed, for logs and
// diagnostics. Variables are never part of it.
func operationLabel(query string) string {
	s := strings.TrimSpace(query)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) > maxLabelLen {
		n := maxLabelLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}
