package h3gql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"

	C "github.com/pmkol/gqlx/constant"
	"github.com/pmkol/gqlx/pkg/gql"
	"github.com/pmkol/gqlx/pkg/pool"
	"github.com/pmkol/gqlx/pkg/transport/envelope"
)

var defaultUserAgent = fmt.Sprintf("gqlx/%s", C.Version)

type Opts struct {
	URL string

	// Transport is optional.
	Transport *http3.Transport

	Header      map[string]string
	UserAgent   string
	MaxBodySize int64
	Logger      *zap.Logger
}

// Transport posts GraphQL requests over HTTP/3.
type Transport struct {
	urlStr    string
	transport *http3.Transport
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
	if u.Scheme != "https" {
		return nil, errors.New("http3 endpoint url must be https")
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
		t.transport = &http3.Transport{}
	}
	if len(t.userAgent) == 0 {
		t.userAgent = defaultUserAgent
	}
	if t.maxBody <= 0 {
		t.maxBody = envelope.DefaultMaxBodySize
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
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
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
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
		t.logger.Debug("graphql h3 exchange failed", zap.Int("status", res.StatusCode), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (t *Transport) Close() error {
	t.transport.CloseIdleConnections()
	return t.transport.Close()
}
