package list

// List is an intrusive doubly linked list. Elements are allocated by the
// caller with NewElem so that they can be moved between positions without
// reallocation.
type List[V any] struct {
	front, back *Elem[V]
	length      int
}

type Elem[V any] struct {
	Value V

	prev, next *Elem[V]
	list       *List[V]
}

func NewElem[V any](v V) *Elem[V] {
	return &Elem[V]{Value: v}
}

// Next returns the element behind e, or nil.
func (e *Elem[V]) Next() *Elem[V] {
	return e.next
}

// Prev returns the element in front of e, or nil.
func (e *Elem[V]) Prev() *Elem[V] {
	return e.prev
}

func New[V any]() *List[V] {
	return &List[V]{}
}

func (l *List[V]) Front() *Elem[V] {
	return l.front
}

func (l *List[V]) Back() *Elem[V] {
	return l.back
}

func (l *List[V]) Len() int {
	return l.length
}

// Init drops all elements. Elements still referenced elsewhere are detached
// lazily: they keep their list pointer until reused, so callers must not
// operate on them afterwards.
func (l *List[V]) Init() {
	l.front, l.back = nil, nil
	l.length = 0
}

func (l *List[V]) PushBack(e *Elem[V]) *Elem[V] {
	if e.list != nil {
		panic("elem already belongs to a list")
	}
	l.length++
	e.list = l
	e.next = nil
	e.prev = l.back

	if l.back == nil {
		l.front = e
	} else {
		l.back.next = e
	}
	l.back = e
	return e
}

// MoveToBack moves e to the back in O(1).
func (l *List[V]) MoveToBack(e *Elem[V]) {
	if e.list != l {
		panic("elem does not belong to this list")
	}
	if l.back == e {
		return
	}
	l.unlink(e)
	e.prev = l.back
	e.next = nil
	l.back.next = e
	l.back = e
}

func (l *List[V]) PopElem(e *Elem[V]) *Elem[V] {
	if e.list != l {
		panic("elem does not belong to this list")
	}
	l.length--
	l.unlink(e)
	if l.back == e {
		l.back = e.prev
	}
	e.prev, e.next, e.list = nil, nil, nil
	return e
}

// unlink detaches e from its neighbours. It fixes l.front but leaves l.back
// to the caller.
func (l *List[V]) unlink(e *Elem[V]) {
	p, n := e.prev, e.next
	if p != nil {
		p.next = n
	} else {
		l.front = n
	}
	if n != nil {
		n.prev = p
	}
}
