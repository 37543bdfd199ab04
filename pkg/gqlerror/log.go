package gqlerror

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultLogSize = 100

// Record is one classified failure.
type Record struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Label   string    `json:"label,omitempty"`
	Stack   string    `json:"stack,omitempty"`
}

// Sink receives every record after it was appended. Publish must not block
// for long, it runs on the request path.
type Sink interface {
	Publish(r Record)
}

// Log is an append only ring of the most recent records.
// It is for diagnostics only, nothing reads it for control flow.
type Log struct {
	mu   sync.Mutex
	buf  []Record
	head int // next write position
	n    int
	sink Sink
	now  func() time.Time
}

// NewLog returns a Log keeping at most size records. size <= 0 means
// DefaultLogSize.
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{buf: make([]Record, size), now: time.Now}
}

// SetSink installs s. Nil removes the sink.
func (l *Log) SetSink(s Sink) {
	l.mu.Lock()
	l.sink = s
	l.mu.Unlock()
}

// Append stores r, dropping the oldest record when full. ID and Time are
// filled in when empty.
func (l *Log) Append(r Record) {
	if len(r.ID) == 0 {
		r.ID = uuid.NewString()
	}

	l.mu.Lock()
	if r.Time.IsZero() {
		r.Time = l.now()
	}
	l.buf[l.head] = r
	l.head = (l.head + 1) % len(l.buf)
	if l.n < len(l.buf) {
		l.n++
	}
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.Publish(r)
	}
}

// Entries returns a copy of the records, most recent first.
func (l *Log) Entries() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, l.n)
	for i := 1; i <= l.n; i++ {
		idx := (l.head - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

func (l *Log) Clear() {
	l.mu.Lock()
	clear(l.buf)
	l.head, l.n = 0, 0
	l.mu.Unlock()
}

var (
	bearerRe = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=+/]+`)
	jwtRe    = regexp.MustCompile(`eyJ[A-Za-z0-9\-_]*\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`)
)

// Scrub removes bearer tokens from s.
func Scrub(s string) string {
	s = bearerRe.ReplaceAllString(s, "Bearer [redacted]")
	return jwtRe.ReplaceAllString(s, "[redacted]")
}
