package pipeline

import (
	"context"
	"errors"
	"sync"
)

// errQueueClosed is returned by pop once the queue is closed and empty.
var errQueueClosed = errors.New("line queue closed")

// lineQueue is an unbounded FIFO with one blocking reader. Push never blocks
// and never drops.
type lineQueue struct {
	mu     sync.Mutex
	items  []string
	head   int
	closed bool
	// notify holds at most one wake-up for the reader.
	notify chan struct{}
}

func newLineQueue() *lineQueue {
	return &lineQueue{notify: make(chan struct{}, 1)}
}

func (q *lineQueue) push(line string) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()

	q.wake()
}

// seal lets the reader drain what is left and then stop.
func (q *lineQueue) seal() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

func (q *lineQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop returns the oldest line, waiting until one is pushed, the queue is
// closed and empty, or ctx is done.
func (q *lineQueue) pop(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()

		if q.head < len(q.items) {
			line := q.items[q.head]
			q.items[q.head] = ""
			q.head++

			if q.head == len(q.items) {
				q.items, q.head = q.items[:0], 0
			}

			q.mu.Unlock()

			return line, nil
		}

		closed := q.closed
		q.mu.Unlock()

		if closed {
			return "", errQueueClosed
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *lineQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}
