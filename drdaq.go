package picodaq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BlockParams describes a single-shot capture on the DrDAQ.
type BlockParams struct {
	// BlockTime is the time the whole block should take, in microseconds.
	BlockTime uint32
	Samples   uint32
	Inputs    []Input
	Method    BlockMethod
}

// DefaultBlockParams captures 20000 samples of the scope input over 200ms.
func DefaultBlockParams() BlockParams {
	return BlockParams{
		BlockTime: 200000,
		Samples:   20000,
		Inputs:    []Input{InputScope},
		Method:    BlockWindow,
	}
}

// DrDAQOption configures OpenDrDAQ.
type DrDAQOption struct {
	apply func(*DrDAQ)
}

func WithDrDAQLogger(log *zap.Logger) DrDAQOption {
	return DrDAQOption{apply: func(d *DrDAQ) {
		if log != nil {
			d.log = log
		}
	}}
}

func WithBlock(p BlockParams) DrDAQOption {
	return DrDAQOption{apply: func(d *DrDAQ) { d.block = p }}
}

// DrDAQ is a USB DrDAQ used for single block captures.
type DrDAQ struct {
	mu  sync.Mutex
	drv DrDAQDriver
	log *zap.Logger

	handle    int16
	block     BlockParams
	blockTime uint32
	closed    bool
	fake      bool
}

// OpenDrDAQ opens the unit and sets the sampling interval. A nil driver
// opens a simulated unit.
func OpenDrDAQ(drv DrDAQDriver, opts ...DrDAQOption) (*DrDAQ, error) {
	d := &DrDAQ{
		drv:   drv,
		log:   zap.NewNop(),
		block: DefaultBlockParams(),
	}
	for _, o := range opts {
		o.apply(d)
	}
	if d.drv == nil {
		d.log.Info("no drdaq library, switching to fake data mode")
		d.drv = NewFakeDrDAQDriver()
		d.fake = true
	} else if _, ok := d.drv.(*FakeDrDAQDriver); ok {
		d.fake = true
	}

	d.log.Debug("connecting to drdaq")
	h, st := d.drv.OpenUnit()
	d.log.Debug("unit opened", zap.Stringer("status", st), zap.Int16("handle", h))
	switch {
	case h < 0:
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, st)
	case h == 0:
		return nil, fmt.Errorf("%w: %v", ErrNotFound, st)
	case st != StatusOK:
		d.drv.CloseUnit(h)
		return nil, st.Err("OpenUnit")
	}
	d.handle = h

	if err := d.SetInterval(d.block); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// SetInterval applies p and records the block time the driver chose.
func (d *DrDAQ) SetInterval(p BlockParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	blockTime, st := d.drv.SetInterval(d.handle, p.BlockTime, p.Samples, p.Inputs)
	d.log.Debug("setting sampling rate",
		zap.Uint32("us_for_block", blockTime),
		zap.Uint32("samples", p.Samples),
		zap.Stringer("status", st))
	if err := st.Err("SetInterval"); err != nil {
		return err
	}
	d.block = p
	d.blockTime = blockTime
	return nil
}

// BlockTime returns the block duration the driver settled on.
func (d *DrDAQ) BlockTime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.blockTime) * time.Microsecond
}

// RunSingleShot starts one block capture.
func (d *DrDAQ) RunSingleShot() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	st := d.drv.Run(d.handle, d.block.Samples, d.block.Method)
	d.log.Debug("initialising single shot measurement", zap.Stringer("status", st))
	return st.Err("Run")
}

// Ready reports whether the running capture has finished.
func (d *DrDAQ) Ready() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, ErrClosed
	}
	done, st := d.drv.Ready(d.handle)
	d.log.Debug("checking if sampling is done", zap.Stringer("status", st), zap.Bool("done", done))
	return done, st.Err("Ready")
}

// WaitReady polls Ready every poll until the capture is done or ctx ends.
func (d *DrDAQ) WaitReady(ctx context.Context, poll time.Duration) error {
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		done, err := d.Ready()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// GetValues fetches the captured block. Samples of several inputs are
// interleaved. overflow has bit n set when input n+1 went over range.
func (d *DrDAQ) GetValues() ([]int16, uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, 0, ErrClosed
	}
	values := make([]int16, int(d.block.Samples)*len(d.block.Inputs))
	n, overflow, _, st := d.drv.GetValues(d.handle, values)
	d.log.Debug("sampled values",
		zap.Stringer("status", st),
		zap.Uint32("samples", n),
		zap.Uint16("overflow", overflow))
	if err := st.Err("GetValues"); err != nil {
		return nil, overflow, err
	}
	return values[:n], overflow, nil
}

// Stop aborts a capture.
func (d *DrDAQ) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	st := d.drv.Stop(d.handle)
	d.log.Debug("stopping sampling", zap.Stringer("status", st))
	return st.Err("Stop")
}

// Scalings returns the scales available on in.
func (d *DrDAQ) Scalings(in Input) (Scalings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Scalings{}, ErrClosed
	}
	sc, st := d.drv.GetScalings(d.handle, in)
	d.log.Debug("vertical scaling",
		zap.Stringer("status", st),
		zap.Int16("current", sc.Current),
		zap.Int16("available", sc.Count))
	return sc, st.Err("GetScalings")
}

// Info returns one of the unit information strings.
func (d *DrDAQ) Info(kind InfoKind) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrClosed
	}
	s, st := d.drv.GetUnitInfo(d.handle, kind)
	return cleanString(s), st.Err("GetUnitInfo")
}

// Close releases the unit. Closing twice is a no-op.
func (d *DrDAQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.log.Debug("closing connection to drdaq")
	st := d.drv.CloseUnit(d.handle)
	d.closed = true
	d.log.Debug("unit closed", zap.Stringer("status", st))
	return st.Err("CloseUnit")
}

func (d *DrDAQ) Handle() int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

// FakeDataMode reports whether the unit is simulated.
func (d *DrDAQ) FakeDataMode() bool {
	return d.fake
}
