package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pqpico/picodaq"
	"github.com/pqpico/picodaq/internal/catalog"
)

type memIndex struct {
	mu     sync.Mutex
	blocks []catalog.BlockRecord
}

func (m *memIndex) AddBlock(_ context.Context, b catalog.BlockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, b)
	return nil
}

func fakeScope(t *testing.T) *picodaq.Scope {
	t.Helper()
	s, err := picodaq.OpenScope(nil,
		picodaq.WithSettleTime(0),
		picodaq.WithStreaming(picodaq.StreamingParams{
			SampleInterval:  100,
			Unit:            picodaq.Microseconds,
			BufferLength:    10000,
			DownSampleRatio: 1,
		}))
	require.NoError(t, err)
	_, err = s.RunStreaming(1, picodaq.RatioModeNone)
	require.NoError(t, err)
	return s
}

func TestRecorder_WritesEveryBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	scope := fakeScope(t)
	defer scope.Close()

	sess, err := Create(t.TempDir(), time.Now(), "10k", "")
	require.NoError(t, err)
	idx := &memIndex{}

	rec := &Recorder{
		Scope:         scope,
		Session:       sess,
		Index:         idx,
		PollInterval:  5 * time.Millisecond,
		ExportComplex: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	stats, err := rec.Run(ctx)
	require.NoError(t, err)

	assert.Positive(t, stats.Blocks)
	assert.Zero(t, scope.Queue().Len())
	require.Len(t, idx.blocks, stats.Blocks)

	var total int64
	for _, b := range idx.blocks {
		assert.Equal(t, sess.ID, b.SessionID)
		assert.Equal(t, "CH1", b.Channel)
		samples, err := ReadBlock(b.Path)
		require.NoError(t, err)
		assert.Len(t, samples, b.Samples)
		total += int64(b.Samples)
	}
	assert.Equal(t, stats.Samples, total)

	exports, err := filepath.Glob(filepath.Join(sess.Dir, "*"+ComplexExt))
	require.NoError(t, err)
	assert.Len(t, exports, stats.Blocks)
}

func TestRecorder_DrainsQueuedBlocks(t *testing.T) {
	scope := fakeScope(t)
	defer scope.Close()

	scope.Queue().Put(picodaq.Block{Seq: 1, Channel: picodaq.ChannelA, Samples: []int16{1, 2, 3}, Time: time.Now()})

	sess, err := Create(t.TempDir(), time.Now(), "10k", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := (&Recorder{Scope: scope, Session: sess, PollInterval: time.Millisecond}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, int64(3), stats.Samples)
}

func TestRecorder_WithCatalog(t *testing.T) {
	scope := fakeScope(t)
	defer scope.Close()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	sess, err := Create(t.TempDir(), time.Now(), "10k", "")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, cat.AddSession(ctx, catalog.Session{ID: sess.ID, Dir: sess.Dir, Rate: sess.Rate, Started: sess.Started}))

	rctx, cancel := context.WithTimeout(ctx, 40*time.Millisecond)
	defer cancel()
	stats, err := (&Recorder{Scope: scope, Session: sess, Index: cat, PollInterval: 5 * time.Millisecond}).Run(rctx)
	require.NoError(t, err)

	sessions, err := cat.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, stats.Blocks, sessions[0].Blocks)
	assert.Equal(t, stats.Samples, sessions[0].Samples)
}

func TestRecorder_RejectsZeroInterval(t *testing.T) {
	_, err := (&Recorder{}).Run(context.Background())
	assert.Error(t, err)
}

// lastPollStreamer queues one block and then ends the recording, the way a
// final poll races a --duration timeout.
type lastPollStreamer struct {
	q      *picodaq.Queue
	cancel context.CancelFunc
}

func (s *lastPollStreamer) Stream(ctx context.Context, _ time.Duration) error {
	s.q.Put(picodaq.Block{Seq: 1, Channel: picodaq.ChannelA, Samples: []int16{8, 16}, Time: time.Now()})
	s.cancel()
	return nil
}

func (s *lastPollStreamer) Queue() *picodaq.Queue      { return s.q }
func (s *lastPollStreamer) ChannelRange() picodaq.Range { return picodaq.Range50V }

func TestRecorder_CataloguesBlockQueuedAtShutdown(t *testing.T) {
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	for i := 0; i < 20; i++ {
		sess, err := Create(t.TempDir(), time.Now(), "1M", "")
		require.NoError(t, err)
		require.NoError(t, cat.AddSession(context.Background(), catalog.Session{ID: sess.ID, Dir: sess.Dir, Rate: sess.Rate, Started: sess.Started}))

		ctx, cancel := context.WithCancel(context.Background())
		rec := &Recorder{
			Scope:        &lastPollStreamer{q: picodaq.NewQueue(), cancel: cancel},
			Session:      sess,
			Index:        cat,
			PollInterval: time.Millisecond,
		}
		stats, err := rec.Run(ctx)
		cancel()
		require.NoError(t, err, "run %d", i)
		assert.Equal(t, 1, stats.Blocks)

		blocks, err := cat.Blocks(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Len(t, blocks, 1)
	}
}
