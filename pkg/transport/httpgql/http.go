package httpgql

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gitlab.com/go-extension/http"
	"go.uber.org/zap"

	C "github.com/pmkol/gqlx/constant"
	"github.com/pmkol/gqlx/pkg/gql"
	"github.com/pmkol/gqlx/pkg/pool"
	"github.com/pmkol/gqlx/pkg/transport/envelope"
)

var (
	defaultUserAgent = fmt.Sprintf("gqlx/%s", C.Version)
	nopLogger        = zap.NewNop()
)

type Opts struct {
	// URL of the GraphQL endpoint. Required.
	URL string

	// Transport is optional. A default transport with keep-alive is used
	// when nil.
	Transport *http.Transport

	// Header is added to every request, before the per request headers.
	Header map[string]string

	UserAgent string

	// MaxBodySize limits the response body. Default is 4 MiB.
	MaxBodySize int64

	Logger *zap.Logger
}

// Transport posts GraphQL requests over HTTP/1.1 or HTTP/2.
type Transport struct {
	urlStr    string
	transport *http.Transport
	header    map[string]string
	userAgent string
	maxBody   int64
	logger    *zap.Logger
}

var _ gql.Transport = (*Transport)(nil)

func NewTransport(opts Opts) (*Transport, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint url, %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("endpoint url must be http or https")
	}

	t := &Transport{
		urlStr:    u.String(),
		transport: opts.Transport,
		header:    opts.Header,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodySize,
		logger:    opts.Logger,
	}
	if t.transport == nil {
		t.transport = &http.Transport{
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	if len(t.userAgent) == 0 {
		t.userAgent = defaultUserAgent
	}
	if t.maxBody <= 0 {
		t.maxBody = envelope.DefaultMaxBodySize
	}
	if t.logger == nil {
		t.logger = nopLogger
	}
	return t, nil
}

func (t *Transport) Send(ctx context.Context, q *gql.Request) (*gql.Response, error) {
	buf := pool.GetBuf()
	defer pool.ReleaseBuf(buf)
	if err := envelope.EncodeRequest(buf, q); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.urlStr, buf)
	if err != nil {
		return nil, err
	}
	for k, v := range t.header {
		req.Header.Set(k, v)
	}
	for k, vs := range q.Header {
		for i, v := range vs {
			if i == 0 {
				req.Header.Set(k, v)
			} else {
				req.Header.Add(k, v)
			}
		}
	}
	req.Header.Set("Accept", envelope.Accept)
	req.Header.Set("User-Agent", t.userAgent)
	if len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Set("Content-Type", envelope.ContentTypeJSON)
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := envelope.ReadBody(res.Body, t.maxBody)
	if err != nil {
		return nil, err
	}
	resp, err := envelope.Decode(res.StatusCode, res.Status, res.Header.Get("Content-Type"), body)
	if err != nil {
		t.logger.Debug("graphql http exchange failed", zap.Int("status", res.StatusCode), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (t *Transport) Close() error {
	t.transport.CloseIdleConnections()
	return nil
}
