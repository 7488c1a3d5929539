package linkedqueue

import "iter"

// Node is a handle to an element of a LinkedQueue. Holding the node lets the
// owner excise it later without scanning the list.
type Node[T any] struct {
	Value   T
	next    *Node[T]
	prev    *Node[T]
	removed bool
}

// Removed reports whether the node has already left its queue.
func (n *Node[T]) Removed() bool { return n.removed }

// LinkedQueue is a doubly linked FIFO. Not safe for concurrent use.
type LinkedQueue[T any] struct {
	head *Node[T]
	tail *Node[T]
	len  int
}

func New[T any]() *LinkedQueue[T] {
	return &LinkedQueue[T]{}
}

func (q *LinkedQueue[T]) Len() int { return q.len }

func (q *LinkedQueue[T]) IsEmpty() bool { return q.len == 0 }

func (q *LinkedQueue[T]) Push(v T) *Node[T] {
	n := &Node[T]{Value: v, prev: q.tail}
	if q.tail != nil {
		q.tail.next = n
	} else {
		q.head = n
	}
	q.tail = n
	q.len++
	return n
}

// Shift removes and returns the oldest element.
func (q *LinkedQueue[T]) Shift() (v T, ok bool) {
	h := q.head
	if h == nil {
		return v, false
	}
	q.unlink(h)
	return h.Value, true
}

// PopBack removes and returns the newest element.
func (q *LinkedQueue[T]) PopBack() (v T, ok bool) {
	t := q.tail
	if t == nil {
		return v, false
	}
	q.unlink(t)
	return t.Value, true
}

// All iterates from oldest to newest. The queue must not change while
// iterating.
func (q *LinkedQueue[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for n := q.head; n != nil; n = n.next {
			if !yield(n.Value) {
				return
			}
		}
	}
}

// Remove unlinks n in O(1). Removing a node twice is a no-op.
func (q *LinkedQueue[T]) Remove(n *Node[T]) {
	if n == nil || n.removed {
		return
	}
	q.unlink(n)
}

func (q *LinkedQueue[T]) unlink(n *Node[T]) {
	n.removed = true

	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}

	n.next = nil
	n.prev = nil
	q.len--
}
