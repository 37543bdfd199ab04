package lru

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func TestLRU_evictsLeastRecentlyAccessed(t *testing.T) {
	var evicted []string
	q := NewLRU[string, int](3, func(key string, _ int) { evicted = append(evicted, key) })
	c := &fakeClock{t: time.Unix(0, 0)}
	q.SetClock(c.now)

	q.Add("a", 1)
	q.Add("b", 2)
	q.Add("c", 3)
	if _, ok := q.Get("a"); !ok {
		t.Fatal("a should exist")
	}

	k, ok := q.Add("d", 4)
	if !ok || k != "b" {
		t.Fatalf("want b evicted, got %q %v", k, ok)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("onEvict got %v", evicted)
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d", q.Len())
	}

	want := []string{"c", "a", "d"}
	got := q.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestLRU_overwriteDoesNotEvict(t *testing.T) {
	q := NewLRU[string, int](2, nil)
	q.Add("a", 1)
	q.Add("b", 2)
	if _, ok := q.Add("a", 10); ok {
		t.Fatal("overwrite must not evict")
	}
	v, _ := q.Peek("a")
	if v != 10 {
		t.Fatalf("a = %d", v)
	}
	k, _, _ := q.Oldest()
	if k != "b" {
		t.Fatalf("oldest = %q", k)
	}
}

func TestLRU_lastAccess(t *testing.T) {
	q := NewLRU[string, int](2, nil)
	c := &fakeClock{t: time.Unix(100, 0)}
	q.SetClock(c.now)

	q.Add("a", 1)
	t1, _ := q.LastAccess("a")
	q.Peek("a")
	t2, _ := q.LastAccess("a")
	if !t1.Equal(t2) {
		t.Fatal("Peek must not touch")
	}
	q.Get("a")
	t3, _ := q.LastAccess("a")
	if !t3.After(t2) {
		t.Fatal("Get must touch")
	}
}

func TestLRU_DelCleanPurge(t *testing.T) {
	q := NewLRU[int, int](8, nil)
	for i := 0; i < 8; i++ {
		q.Add(i, i)
	}
	if !q.Del(3) || q.Del(3) {
		t.Fatal("Del should report presence")
	}
	if n := q.Clean(func(_ int, v int) bool { return v%2 == 0 }); n != 4 {
		t.Fatalf("cleaned %d", n)
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d", q.Len())
	}
	q.Purge()
	if q.Len() != 0 || len(q.Keys()) != 0 {
		t.Fatal("purge failed")
	}
	q.Add(1, 1)
	if v, ok := q.Get(1); !ok || v != 1 {
		t.Fatal("add after purge failed")
	}
}

func TestNewLRU_invalidSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewLRU[string, int](0, nil)
}
