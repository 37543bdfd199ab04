package sweeper

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/gqlx/pkg/cache/mem_cache"
	"github.com/pmkol/gqlx/pkg/safe_close"
)

func TestSweepOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c, err := mem_cache.New(mem_cache.Opts{Capacity: 16, Clock: clock})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("old%d", i), nil, now.Add(-time.Second))
		c.Set(fmt.Sprintf("new%d", i), nil, now.Add(time.Minute))
	}

	s := New(c, Opts{Clock: clock})
	assert.Equal(t, 4, s.SweepOnce())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 0, s.SweepOnce())

	before := c.Stats()
	assert.Zero(t, before.Hits+before.Misses, "sweeping must not count as lookups")
}

func TestSweeperStart(t *testing.T) {
	c, err := mem_cache.New(mem_cache.Opts{Capacity: 16})
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		c.Set(fmt.Sprint(i), nil, time.Now())
	}

	sc := safe_close.NewSafeClose()
	s := New(c, Opts{Interval: 10 * time.Millisecond})
	require.True(t, s.Start(sc))

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	sc.Done()
	sc.CloseWait()
}

func TestSweeperDisabled(t *testing.T) {
	c, err := mem_cache.New(mem_cache.Opts{Capacity: 1})
	require.NoError(t, err)
	s := New(c, Opts{Interval: -1})
	assert.False(t, s.Start(safe_close.NewSafeClose()))
}
