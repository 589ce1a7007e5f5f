package picodaq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChannelConfig is the argument set of SetChannel.
type ChannelConfig struct {
	Channel      Channel
	Enabled      bool
	Coupling     Coupling
	Range        Range
	AnalogOffset float32
}

// DefaultChannelConfig enables channel A, DC coupled, on the 50V range.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Channel:      ChannelA,
		Enabled:      true,
		Coupling:     CouplingDC,
		Range:        Range50V,
		AnalogOffset: AnalogOffsetZero,
	}
}

// StreamingParams controls the data buffers and RunStreaming.
type StreamingParams struct {
	SampleInterval  uint32
	Unit            TimeUnit
	BufferLength    uint32
	DownSampleRatio uint32
	RatioMode       RatioMode
}

// DefaultStreamingParams streams at 1 sample per microsecond into a one
// million sample buffer.
func DefaultStreamingParams() StreamingParams {
	return StreamingParams{
		SampleInterval:  1,
		Unit:            Microseconds,
		BufferLength:    1_000_000,
		DownSampleRatio: 1,
		RatioMode:       RatioModeNone,
	}
}

// TimebaseRequest is the argument set of GetTimebase.
type TimebaseRequest struct {
	Timebase uint32
	Samples  int32
	Segment  uint32
}

// Timebase is the answer of GetTimebase.
type Timebase struct {
	IntervalNS int32
	MaxSamples int32
}

// ScopeOption configures OpenScope.
type ScopeOption struct {
	apply func(*Scope)
}

func WithLogger(log *zap.Logger) ScopeOption {
	return ScopeOption{apply: func(s *Scope) {
		if log != nil {
			s.log = log
		}
	}}
}

func WithStreaming(p StreamingParams) ScopeOption {
	return ScopeOption{apply: func(s *Scope) { s.streaming = p }}
}

func WithChannel(c ChannelConfig) ScopeOption {
	return ScopeOption{apply: func(s *Scope) { s.channel = c }}
}

func WithTimebase(t TimebaseRequest) ScopeOption {
	return ScopeOption{apply: func(s *Scope) { s.timebaseReq = t }}
}

// WithSettleTime sets how long OpenScope waits for the unit to apply its
// settings.
func WithSettleTime(d time.Duration) ScopeOption {
	return ScopeOption{apply: func(s *Scope) { s.settle = d }}
}

// WithFakeFallback controls whether a missing unit switches to fake data
// mode (the default) instead of failing.
func WithFakeFallback(enabled bool) ScopeOption {
	return ScopeOption{apply: func(s *Scope) { s.fakeFallback = enabled }}
}

// Scope is a PicoScope 4000A in streaming mode.
type Scope struct {
	mu  sync.Mutex
	drv ScopeDriver
	log *zap.Logger

	handle       int16
	fakeDataMode bool
	fakeFallback bool
	settle       time.Duration

	streaming   StreamingParams
	channel     ChannelConfig
	timebaseReq TimebaseRequest
	timebase    Timebase

	enabled  [MaxChannels]bool
	buffers  [MaxChannels][]int16
	interval uint32

	queue   *Queue
	seq     uint64
	running bool
	closed  bool
}

// OpenScope opens the unit behind drv, applies the channel, timebase and data
// buffer settings and waits for them to settle. A nil driver opens in fake
// data mode.
func OpenScope(drv ScopeDriver, opts ...ScopeOption) (*Scope, error) {
	s := &Scope{
		drv:          drv,
		log:          zap.NewNop(),
		fakeFallback: true,
		settle:       200 * time.Millisecond,
		streaming:    DefaultStreamingParams(),
		channel:      DefaultChannelConfig(),
		timebaseReq:  TimebaseRequest{Timebase: 99, Samples: 1000},
		queue:        NewQueue(),
	}
	for _, o := range opts {
		o.apply(s)
	}

	if s.drv == nil {
		s.log.Info("no picoscope library, switching to fake data mode")
		s.useFakeDriver()
	} else if _, ok := s.drv.(*FakeScopeDriver); ok {
		s.fakeDataMode = true
	}

	if err := s.openUnit(); err != nil {
		return nil, err
	}
	if err := s.SetChannel(s.channel); err != nil {
		s.Close()
		return nil, err
	}
	if _, err := s.GetTimebase(s.timebaseReq); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.SetDataBuffer(s.channel.Channel, 0, RatioModeNone); err != nil {
		s.Close()
		return nil, err
	}

	time.Sleep(s.settle)
	return s, nil
}

func (s *Scope) useFakeDriver() {
	s.drv = NewFakeScopeDriver()
	s.fakeDataMode = true
}

func (s *Scope) openUnit() error {
	s.log.Debug("open_unit")

	h, st := s.drv.OpenUnit()
	s.log.Debug("unit opened", zap.Stringer("status", st), zap.Int16("handle", h))

	if st.needsPowerSource() {
		s.log.Warn("wrong power supply detected, changing supply mode", zap.Stringer("status", st))
		if res := s.drv.ChangePowerSource(h, st); res != StatusOK {
			s.drv.CloseUnit(h)
			return fmt.Errorf("changing usb power supply: %w", res.Err("ChangePowerSource"))
		}
		s.log.Debug("supply mode changed")
		st = StatusOK
	}

	switch {
	case h < 0:
		return fmt.Errorf("%w: %v", ErrOpenFailed, st)
	case h == 0:
		if !s.fakeFallback || s.fakeDataMode {
			return fmt.Errorf("%w: %v", ErrNotFound, st)
		}
		s.log.Warn("no oscilloscope found, switching to fake data mode")
		s.useFakeDriver()
		return s.openUnit()
	case st != StatusOK:
		s.drv.CloseUnit(h)
		return st.Err("OpenUnit")
	}

	s.handle = h
	return nil
}

// SetChannel configures one analog input.
func (s *Scope) SetChannel(c ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !c.Channel.Valid() {
		return StatusInvalidChannel.Err("SetChannel")
	}

	st := s.drv.SetChannel(s.handle, c.Channel, c.Enabled, c.Coupling, c.Range, c.AnalogOffset)
	s.log.Debug("set channel",
		zap.Stringer("channel", c.Channel),
		zap.Stringer("range", c.Range),
		zap.Bool("enabled", c.Enabled),
		zap.Stringer("status", st))
	if err := st.Err("SetChannel"); err != nil {
		return err
	}
	s.enabled[c.Channel] = c.Enabled
	if c.Channel == s.channel.Channel {
		s.channel = c
	}
	return nil
}

// EnabledChannels lists the channels switched on through SetChannel.
func (s *Scope) EnabledChannels() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Channel
	for ch, on := range s.enabled {
		if on {
			out = append(out, Channel(ch))
		}
	}
	return out
}

// ChannelRange returns the vertical range last applied to the primary channel.
func (s *Scope) ChannelRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.Range
}

// GetTimebase asks the driver for the sample interval and capacity of a
// timebase.
func (s *Scope) GetTimebase(req TimebaseRequest) (Timebase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Timebase{}, ErrClosed
	}

	interval, maxSamples, st := s.drv.GetTimebase(s.handle, req.Timebase, req.Samples, req.Segment)
	s.log.Debug("get timebase",
		zap.Uint32("timebase", req.Timebase),
		zap.Int32("time_interval_ns", interval),
		zap.Int32("max_samples", maxSamples),
		zap.Stringer("status", st))
	if err := st.Err("GetTimebase"); err != nil {
		return Timebase{}, err
	}
	s.timebase = Timebase{IntervalNS: interval, MaxSamples: maxSamples}
	return s.timebase, nil
}

// SetDataBuffer registers a streaming buffer of the configured length for ch.
// The same length must be passed to RunStreaming, which this type does.
func (s *Scope) SetDataBuffer(ch Channel, segment uint32, mode RatioMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !ch.Valid() {
		return StatusInvalidChannel.Err("SetDataBuffer")
	}

	buf, st := s.drv.SetDataBuffer(s.handle, ch, int32(s.streaming.BufferLength), segment, mode)
	s.log.Debug("set data buffer",
		zap.Stringer("channel", ch),
		zap.Uint32("length", s.streaming.BufferLength),
		zap.Stringer("status", st))
	if err := st.Err("SetDataBuffer"); err != nil {
		return err
	}
	s.buffers[ch] = buf
	return nil
}

// RunStreaming starts continuous streaming without a trigger and returns the
// sample interval the driver selected.
func (s *Scope) RunStreaming(downSampleRatio uint32, mode RatioMode) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if !s.hasBuffer() {
		return 0, ErrNoBuffer
	}

	interval := s.streaming.SampleInterval
	s.log.Debug("run streaming", zap.Uint32("sample_interval_before", interval))

	st := s.drv.RunStreaming(s.handle, &interval, s.streaming.Unit, 0, 0, false,
		downSampleRatio, mode, s.streaming.BufferLength)
	s.log.Debug("streaming started",
		zap.Stringer("status", st),
		zap.Uint32("sample_interval", interval),
		zap.Stringer("unit", s.streaming.Unit))
	if err := st.Err("RunStreaming"); err != nil {
		return 0, err
	}

	s.interval = interval
	s.running = true
	return interval, nil
}

func (s *Scope) hasBuffer() bool {
	for _, b := range s.buffers {
		if b != nil {
			return true
		}
	}
	return false
}

// SampleInterval returns the interval in effect since RunStreaming, or the
// requested one before streaming started.
func (s *Scope) SampleInterval() (uint32, TimeUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval != 0 {
		return s.interval, s.streaming.Unit
	}
	return s.streaming.SampleInterval, s.streaming.Unit
}

// GetStreamingLatestValues hands every chunk the driver has ready to the
// queue. The driver runs the callback before this returns.
func (s *Scope) GetStreamingLatestValues() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	st := s.drv.GetStreamingLatestValues(s.handle, s.onStreamingReady)
	return st.Err("GetStreamingLatestValues")
}

// onStreamingReady runs inside GetStreamingLatestValues with s.mu held.
func (s *Scope) onStreamingReady(r StreamingReady) {
	now := time.Now()
	for i, buf := range s.buffers {
		if buf == nil {
			continue
		}
		ch := Channel(i)
		overflow := r.Overflowed(ch)
		if overflow {
			s.log.Warn("vertical overflow", zap.Stringer("channel", ch))
		}

		start := int(r.StartIndex)
		end := start + int(r.NoOfSamples)
		if r.NoOfSamples < 0 || end > len(buf) {
			s.log.Error("driver reported samples outside the data buffer",
				zap.Stringer("channel", ch),
				zap.Uint32("start_index", r.StartIndex),
				zap.Int32("samples", r.NoOfSamples),
				zap.Int("buffer_length", len(buf)))
			continue
		}

		data := make([]int16, end-start)
		copy(data, buf[start:end])

		if ce := s.log.Check(zap.DebugLevel, "samples collected"); ce != nil {
			fields := []zap.Field{
				zap.Stringer("channel", ch),
				zap.Uint32("start_index", r.StartIndex),
				zap.Int32("samples", r.NoOfSamples),
			}
			if len(data) > 0 {
				fields = append(fields, zap.Int16("first_sample", data[0]))
			}
			ce.Write(fields...)
		}

		s.seq++
		s.queue.Put(Block{
			Seq:        s.seq,
			Channel:    ch,
			Samples:    data,
			StartIndex: r.StartIndex,
			Overflow:   overflow,
			Triggered:  r.Triggered,
			TriggerAt:  r.TriggerAt,
			Time:       now,
			Fake:       s.fakeDataMode,
		})
		s.log.Debug("samples saved", zap.Int("saved", len(data)), zap.Int("queue_size", s.queue.Len()))
	}
}

// GetQueueData polls the driver and pops the oldest queued block. It returns
// nil samples when nothing is queued.
func (s *Scope) GetQueueData() ([]int16, error) {
	if err := s.GetStreamingLatestValues(); err != nil {
		return nil, err
	}
	b, ok := s.queue.TryGet()
	if !ok {
		return nil, nil
	}
	return b.Samples, nil
}

// Stream polls the driver every interval until ctx is done.
func (s *Scope) Stream(ctx context.Context, interval time.Duration) error {
	return streamPollLoop(ctx, s, interval)
}

// Stop ends streaming.
func (s *Scope) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	st := s.drv.Stop(s.handle)
	s.log.Debug("stopping sampling of scope", zap.Stringer("status", st))
	s.running = false
	return st.Err("Stop")
}

// Close stops streaming if needed and releases the unit. Closing twice is a
// no-op.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.log.Debug("close_unit")
	if s.running {
		s.drv.Stop(s.handle)
		s.running = false
	}
	st := s.drv.CloseUnit(s.handle)
	s.log.Debug("unit closed", zap.Stringer("status", st))
	s.closed = true
	s.buffers = [MaxChannels][]int16{}
	return st.Err("CloseUnit")
}

func (s *Scope) Handle() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// FakeDataMode reports whether the scope is producing simulated samples.
func (s *Scope) FakeDataMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeDataMode
}

func (s *Scope) Queue() *Queue {
	return s.queue
}

func (s *Scope) Streaming() StreamingParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Scope) Timebase() Timebase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timebase
}
