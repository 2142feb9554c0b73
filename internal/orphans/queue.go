// Package orphans tracks bucket objects whose compensating removal failed and
// retries their removal in the background.
package orphans

import (
	"context"
	"sync"
)

// Item is an object path awaiting removal.
type Item struct {
	Path     string `json:"path"`
	Attempts int    `json:"attempts"`
}

// Queue holds orphaned objects. Dequeue returns ok == false when the queue is
// empty.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (item Item, ok bool, err error)
	Len(ctx context.Context) (int, error)
}

// MemoryQueue is a FIFO queue in process memory, used when no Redis is
// configured.
type MemoryQueue struct {
	mu    sync.Mutex
	items []Item
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false, nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
