package bridge

import "sync"

// eventQueue is a FIFO shared between one callback producer and one
// polling consumer. Pop order equals push order. A plain mutex keeps
// create/destroy safe against in-flight callbacks; contention is two
// goroutines at most.
type eventQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *eventQueue[T]) push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// pop removes and returns the oldest item; ok is false on empty.
func (q *eventQueue[T]) pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *eventQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue[T]) clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
