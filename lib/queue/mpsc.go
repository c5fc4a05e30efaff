package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is one element of the linked list
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC is an unbounded lock-free multi-producer single-consumer queue.
// Producers append to a linked list with CAS operations, a single internal
// goroutine moves the values to the channel returned by Recv.
type MPSC[T any] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
	out  chan T

	closed    atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// wakes the consumer when it has nothing to deliver
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates a queue and starts its delivery goroutine
func New[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out:     make(chan T),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.deliver()

	return q
}

// Push appends a value. Returns false if the queue is closed.
// Safe for concurrent use by any number of producers.
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already advanced the tail, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not advance the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin briefly under low contention, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// deliver moves values from the list to the out channel until the queue is closed
func (q *MPSC[T]) deliver() {
	defer close(q.stopped)
	defer close(q.out)

	for {
		if q.closed.Load() {
			return
		}

		head := q.head.Load()
		next := head.next.Load()

		if next == nil {
			q.mu.Lock()
			for q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
			continue
		}

		value := next.value
		q.head.Store(next)

		select {
		case q.out <- value:
		case <-q.done:
			return
		}

		// release the reference, the node is the new sentinel
		var zero T
		next.value = zero
	}
}

// Recv returns the channel values are delivered on. It is closed after Close.
func (q *MPSC[T]) Recv() <-chan T {
	return q.out
}

// Close stops the queue. Values not yet received are discarded and further
// pushes fail. Close returns once the Recv channel is closed.
func (q *MPSC[T]) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)

		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	<-q.stopped
}

// IsClosed returns true if the queue is closed.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len counts the values waiting in the list. O(n), meant for stats and tests.
func (q *MPSC[T]) Len() int {
	count := 0
	current := q.head.Load()

	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}

	return count
}
