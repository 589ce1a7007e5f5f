package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pqpico/picodaq"
	"github.com/pqpico/picodaq/internal/catalog"
)

// Streamer is the part of *picodaq.Scope the recorder drives.
type Streamer interface {
	Stream(ctx context.Context, interval time.Duration) error
	Queue() *picodaq.Queue
	ChannelRange() picodaq.Range
}

// BlockIndexer records written blocks. *catalog.Catalog implements it.
type BlockIndexer interface {
	AddBlock(ctx context.Context, b catalog.BlockRecord) error
}

// Stats counts what a recording wrote.
type Stats struct {
	Blocks    int
	Samples   int64
	Overflows int
}

// Recorder polls a streaming scope and writes every queued block into a
// session folder until its context is done.
type Recorder struct {
	Scope        Streamer
	Session      *Session
	Index        BlockIndexer // optional
	PollInterval time.Duration
	// ExportComplex also writes a volts-scaled complex64 copy of each block.
	ExportComplex bool
	Log           *zap.Logger
}

// Run records until ctx is done or a step fails. Blocks still queued when
// polling ends are written before it returns.
func (r *Recorder) Run(ctx context.Context) (Stats, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	if r.PollInterval <= 0 {
		return Stats{}, errors.New("poll interval must be positive")
	}

	var stats Stats
	q := r.Scope.Queue()
	g, gctx := errgroup.WithContext(ctx)
	// a block taken off the queue is always written and catalogued, even
	// when Get returns it after cancellation
	writeCtx := context.WithoutCancel(ctx)

	g.Go(func() error {
		return r.Scope.Stream(gctx, r.PollInterval)
	})

	g.Go(func() error {
		for {
			b, err := q.Get(gctx)
			if err != nil {
				return nil
			}
			if err := r.write(writeCtx, b, &stats); err != nil {
				return err
			}
		}
	})

	err := g.Wait()

	// write what the last polls queued
	for _, b := range q.Drain() {
		if werr := r.write(writeCtx, b, &stats); werr != nil && err == nil {
			err = werr
		}
	}

	log.Info("recording finished",
		zap.String("session", r.Session.ID),
		zap.Int("blocks", stats.Blocks),
		zap.Int64("samples", stats.Samples),
		zap.Int("overflows", stats.Overflows),
		zap.Error(err))
	return stats, err
}

func (r *Recorder) write(ctx context.Context, b picodaq.Block, stats *Stats) error {
	path, err := r.Session.WriteBlock(b)
	if err != nil {
		return err
	}
	if r.ExportComplex {
		if _, err := ExportComplex(path, r.Scope.ChannelRange()); err != nil {
			return err
		}
	}
	if r.Index != nil {
		err := r.Index.AddBlock(ctx, catalog.BlockRecord{
			SessionID: r.Session.ID,
			Seq:       b.Seq,
			Channel:   b.Channel.Label(),
			Path:      path,
			Samples:   len(b.Samples),
			Overflow:  b.Overflow,
			Written:   b.Time,
		})
		if err != nil {
			return fmt.Errorf("block %d: %w", b.Seq, err)
		}
	}

	stats.Blocks++
	stats.Samples += int64(len(b.Samples))
	if b.Overflow {
		stats.Overflows++
	}
	return nil
}
