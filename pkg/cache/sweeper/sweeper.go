package sweeper

import (
	"time"

	"go.uber.org/zap"

	"github.com/pmkol/gqlx/pkg/safe_close"
)

const defaultInterval = 5 * time.Minute

var nopLogger = zap.NewNop()

// Target is the cache being swept. mem_cache.MemCache implements it.
type Target interface {
	Keys() []string
	Expired(key string, now time.Time) bool
	Delete(key string) bool
}

type Opts struct {
	// Interval between two sweeps. Default is 5 minutes.
	// A negative Interval disables Start.
	Interval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Logger is optional.
	Logger *zap.Logger
}

func (opts *Opts) init() {
	if opts.Interval == 0 {
		opts.Interval = defaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
}

// Sweeper periodically removes expired cache entries. Reads already treat
// expired entries as misses, so sweeping only reclaims space early.
type Sweeper struct {
	target Target
	opts   Opts
}

func New(target Target, opts Opts) *Sweeper {
	opts.init()
	return &Sweeper{target: target, opts: opts}
}

// SweepOnce deletes every expired entry and returns how many were removed.
func (s *Sweeper) SweepOnce() int {
	now := s.opts.Clock()
	removed := 0
	for _, key := range s.target.Keys() {
		if s.target.Expired(key, now) && s.target.Delete(key) {
			removed++
		}
	}
	return removed
}

// Start runs the sweeper in a goroutine owned by sc until sc is closed.
// It returns false if the sweeper is disabled.
func (s *Sweeper) Start(sc *safe_close.SafeClose) bool {
	if s.opts.Interval < 0 {
		return false
	}
	sc.Go(s.run)
	return true
}

func (s *Sweeper) run(closeSignal <-chan struct{}) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-closeSignal:
			return
		case <-ticker.C:
			if n := s.SweepOnce(); n > 0 {
				s.opts.Logger.Debug("expired cache entries swept", zap.Int("removed", n))
			}
		}
	}
}
