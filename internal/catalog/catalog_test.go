package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_SessionsAndBlocks(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)

	t0 := time.Date(2015, 1, 22, 22, 32, 40, 0, time.UTC)
	require.NoError(t, c.AddSession(ctx, Session{ID: "old", Dir: "a", Rate: "1M", Started: t0}))
	require.NoError(t, c.AddSession(ctx, Session{ID: "new", Dir: "b", Rate: "500k", Fake: true, Started: t0.Add(time.Hour)}))

	for seq := uint64(2); seq > 0; seq-- {
		require.NoError(t, c.AddBlock(ctx, BlockRecord{
			SessionID: "new",
			Seq:       seq,
			Channel:   "CH1",
			Path:      "b/blk",
			Samples:   100 * int(seq),
			Overflow:  seq == 2,
			Written:   t0,
		}))
	}

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "new", sessions[0].ID)
	assert.True(t, sessions[0].Fake)
	assert.Equal(t, 2, sessions[0].Blocks)
	assert.Equal(t, int64(300), sessions[0].Samples)
	assert.True(t, sessions[0].Started.Equal(t0.Add(time.Hour)))

	assert.Equal(t, "old", sessions[1].ID)
	assert.Zero(t, sessions[1].Blocks)

	blocks, err := c.Blocks(ctx, "new")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(1), blocks[0].Seq)
	assert.False(t, blocks[0].Overflow)
	assert.True(t, blocks[1].Overflow)
	assert.True(t, blocks[1].Written.Equal(t0))
}

func TestCatalog_DuplicateBlockRejected(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)

	require.NoError(t, c.AddSession(ctx, Session{ID: "s", Dir: "d", Rate: "1M", Started: time.Now()}))
	b := BlockRecord{SessionID: "s", Seq: 1, Channel: "CH1", Path: "p", Samples: 1, Written: time.Now()}
	require.NoError(t, c.AddBlock(ctx, b))
	assert.ErrorContains(t, c.AddBlock(ctx, b), "failed to add block")
}

func TestCatalog_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.AddSession(ctx, Session{ID: "s", Dir: "d", Rate: "1M", Started: time.Now()}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
