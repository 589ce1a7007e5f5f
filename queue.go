package picodaq

import (
	"context"
	"sync"
	"time"
)

// Block is one chunk of samples copied out of a channel buffer.
type Block struct {
	Seq        uint64
	Channel    Channel
	Samples    []int16
	StartIndex uint32
	Overflow   bool
	Triggered  bool
	TriggerAt  uint32
	Time       time.Time
	Fake       bool
}

// Queue is an unbounded FIFO handing blocks from the streaming callback to
// consumers. It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Block
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Put appends b and wakes one waiting consumer.
func (q *Queue) Put(b Block) {
	q.mu.Lock()
	q.items = append(q.items, b)
	q.mu.Unlock()
	q.signal()
}

// TryGet pops the oldest block without waiting.
func (q *Queue) TryGet() (Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Block{}, false
	}
	b := q.items[0]
	q.items[0] = Block{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return b, true
}

// Get pops the oldest block, waiting until one arrives or ctx is done.
func (q *Queue) Get(ctx context.Context) (Block, error) {
	for {
		if b, ok := q.TryGet(); ok {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return Block{}, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns everything currently queued.
func (q *Queue) Drain() []Block {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
