package picodaq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for i := 1; i <= 3; i++ {
		q.Put(Block{Seq: uint64(i)})
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		b, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, uint64(i), b.Seq)
	}
	_, ok := q.TryGet()
	assert.False(t, ok)
}

func TestQueue_GetWaitsForPut(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue()
	got := make(chan Block)
	go func() {
		b, err := q.Get(context.Background())
		if err == nil {
			got <- b
		}
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Put(Block{Seq: 7})

	select {
	case b := <-got:
		assert.Equal(t, uint64(7), b.Seq)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
	<-got
}

func TestQueue_GetHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentConsumersSeeEveryBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	const blocks = 200
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				b, err := q.Get(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[b.Seq] = true
				done := len(seen) == blocks
				mu.Unlock()
				if done {
					cancel()
				}
			}
		}()
	}

	for i := 0; i < blocks; i++ {
		q.Put(Block{Seq: uint64(i)})
	}
	wg.Wait()
	assert.Len(t, seen, blocks)
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue()
	q.Put(Block{Seq: 1})
	q.Put(Block{Seq: 2})

	out := q.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, uint64(2), out[1].Seq)
	assert.Zero(t, q.Len())
}
