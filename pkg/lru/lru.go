package lru

import (
	"fmt"
	"time"

	"github.com/pmkol/gqlx/pkg/list"
)

// LRU is a fixed size least-recently-used container. Every element records
// the time of its last access. The list is kept in access order, so the
// front element always carries the smallest timestamp.
// LRU is not safe for concurrent use.
type LRU[K comparable, V any] struct {
	maxSize int
	onEvict func(key K, v V)
	now     func() time.Time

	l *list.List[KV[K, V]]
	m map[K]*list.Elem[KV[K, V]]
}

type KV[K comparable, V any] struct {
	key        K
	v          V
	lastAccess time.Time
}

// NewLRU panics if maxSize <= 0. onEvict is called only when an entry is
// dropped to make room for a new key.
func NewLRU[K comparable, V any](maxSize int, onEvict func(key K, v V)) *LRU[K, V] {
	if maxSize <= 0 {
		panic(fmt.Sprintf("LRU: invalid max size: %d", maxSize))
	}

	return &LRU[K, V]{
		maxSize: maxSize,
		onEvict: onEvict,
		now:     time.Now,
		l:       list.New[KV[K, V]](),
		m:       make(map[K]*list.Elem[KV[K, V]], maxSize),
	}
}

// SetClock replaces the time source used for access stamps.
func (q *LRU[K, V]) SetClock(now func() time.Time) {
	if now != nil {
		q.now = now
	}
}

// Add inserts or overwrites key. If key is new and the LRU is full, the
// least recently accessed entry is removed first and reported.
func (q *LRU[K, V]) Add(key K, v V) (evictedKey K, evicted bool) {
	now := q.now()
	if e, ok := q.m[key]; ok {
		e.Value.v = v
		e.Value.lastAccess = now
		q.l.MoveToBack(e)
		return
	}

	if q.l.Len() >= q.maxSize {
		e := q.l.Front()
		evictedKey, evicted = e.Value.key, true
		if q.onEvict != nil {
			q.onEvict(e.Value.key, e.Value.v)
		}
		delete(q.m, e.Value.key)

		// Reuse the element of the victim.
		e.Value = KV[K, V]{key: key, v: v, lastAccess: now}
		q.m[key] = e
		q.l.MoveToBack(e)
		return
	}

	e := list.NewElem(KV[K, V]{key: key, v: v, lastAccess: now})
	q.m[key] = e
	q.l.PushBack(e)
	return
}

// Get returns the value of key and marks it as most recently used.
func (q *LRU[K, V]) Get(key K) (v V, ok bool) {
	e, ok := q.m[key]
	if !ok {
		return
	}
	e.Value.lastAccess = q.now()
	q.l.MoveToBack(e)
	return e.Value.v, true
}

// Peek returns the value of key without touching its recency.
func (q *LRU[K, V]) Peek(key K) (v V, ok bool) {
	e, ok := q.m[key]
	if !ok {
		return
	}
	return e.Value.v, true
}

// LastAccess returns the last access time of key.
func (q *LRU[K, V]) LastAccess(key K) (time.Time, bool) {
	e, ok := q.m[key]
	if !ok {
		return time.Time{}, false
	}
	return e.Value.lastAccess, true
}

// Del removes key and reports whether it was present.
func (q *LRU[K, V]) Del(key K) bool {
	e := q.m[key]
	if e == nil {
		return false
	}
	q.l.PopElem(e)
	delete(q.m, key)
	return true
}

// Oldest returns the least recently accessed entry without removing it.
func (q *LRU[K, V]) Oldest() (key K, v V, ok bool) {
	e := q.l.Front()
	if e == nil {
		return
	}
	return e.Value.key, e.Value.v, true
}

// Clean removes every entry for which f returns true.
func (q *LRU[K, V]) Clean(f func(key K, v V) bool) (removed int) {
	e := q.l.Front()
	for e != nil {
		next := e.Next()
		if f(e.Value.key, e.Value.v) {
			q.l.PopElem(e)
			delete(q.m, e.Value.key)
			removed++
		}
		e = next
	}
	return
}

// Keys returns all keys from the least to the most recently accessed.
func (q *LRU[K, V]) Keys() []K {
	keys := make([]K, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.key)
	}
	return keys
}

// Purge removes all entries.
func (q *LRU[K, V]) Purge() {
	q.l.Init()
	q.m = make(map[K]*list.Elem[KV[K, V]], q.maxSize)
}

func (q *LRU[K, V]) Len() int {
	return q.l.Len()
}

func (q *LRU[K, V]) MaxSize() int {
	return q.maxSize
}
