package ringbuffer

const minCapacity = 2

// RingBuffer is a growable FIFO backed by a power-of-two circular slice.
//
// Push and Shift are O(1). When the buffer is full, Push doubles the backing
// slice and re-linearizes the contents starting from the logical head.
// Not safe for concurrent use.
type RingBuffer[T any] struct {
	buf  []T
	head int
	tail int
	size int
}

func New[T any](initialCapacity int) *RingBuffer[T] {
	return &RingBuffer[T]{
		buf: make([]T, nextPow2(max(minCapacity, initialCapacity))),
	}
}

func (rb *RingBuffer[T]) Len() int { return rb.size }

func (rb *RingBuffer[T]) Cap() int { return len(rb.buf) }

func (rb *RingBuffer[T]) IsEmpty() bool { return rb.size == 0 }

func (rb *RingBuffer[T]) Push(v T) {
	if rb.size == len(rb.buf) {
		rb.grow()
	}
	rb.buf[rb.tail] = v
	rb.tail = (rb.tail + 1) & (len(rb.buf) - 1)
	rb.size++
}

// Shift removes and returns the oldest element.
func (rb *RingBuffer[T]) Shift() (v T, ok bool) {
	if rb.size == 0 {
		return v, false
	}
	var zero T
	v = rb.buf[rb.head]
	rb.buf[rb.head] = zero // release the reference for the GC
	rb.head = (rb.head + 1) & (len(rb.buf) - 1)
	rb.size--
	return v, true
}

// Peek returns the oldest element without removing it.
func (rb *RingBuffer[T]) Peek() (v T, ok bool) {
	if rb.size == 0 {
		return v, false
	}
	return rb.buf[rb.head], true
}

func (rb *RingBuffer[T]) Clear() {
	clear(rb.buf)
	rb.head = 0
	rb.tail = 0
	rb.size = 0
}

// Values returns a copy of the contents in FIFO order.
func (rb *RingBuffer[T]) Values() []T {
	out := make([]T, rb.size)
	for i := range rb.size {
		out[i] = rb.buf[(rb.head+i)&(len(rb.buf)-1)]
	}
	return out
}

func (rb *RingBuffer[T]) grow() {
	next := make([]T, len(rb.buf)*2)
	for i := range rb.size {
		next[i] = rb.buf[(rb.head+i)&(len(rb.buf)-1)]
	}
	rb.buf = next
	rb.head = 0
	rb.tail = rb.size
}

func nextPow2(n int) int {
	x := 1
	for x < n {
		x <<= 1
	}
	return x
}
