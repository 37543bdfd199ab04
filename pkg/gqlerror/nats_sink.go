package gqlerror

import (
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultNATSSubject = "gqlx.diagnostics"

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards records as JSON to a NATS subject so that external
// tooling can follow failures of every gateway in one place.
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
	closer  func()
}

var _ Sink = (*NATSSink)(nil)

// DialNATSSink connects to url and returns a sink publishing on subject.
func DialNATSSink(url, subject string, logger *zap.Logger) (*NATSSink, error) {
	if len(url) == 0 {
		return nil, errors.New("empty nats url")
	}
	nc, err := nats.Connect(url, nats.Name("gqlx diagnostics"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	s := NewNATSSink(nc, subject, logger)
	s.closer = nc.Close
	return s, nil
}

func NewNATSSink(pub Publisher, subject string, logger *zap.Logger) *NATSSink {
	if len(subject) == 0 {
		subject = DefaultNATSSubject
	}
	if logger == nil {
		logger = nopLogger
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// Publish is asynchronous on the nats side, it only buffers the message.
func (s *NATSSink) Publish(r Record) {
	b, err := json.Marshal(r)
	if err != nil {
		s.logger.Warn("failed to encode diagnostics record", zap.Error(err))
		return
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		s.logger.Warn("failed to publish diagnostics record", zap.Error(err))
	}
}

func (s *NATSSink) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
