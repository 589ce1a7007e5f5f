package picodaq

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// FakeBlockLength is the number of samples in one period group of the
// simulated waveform: 25 full cycles of a sine wave.
const FakeBlockLength = 1000

// FakeSample returns sample k of the simulated waveform. The waveform is
// sin(50x) for x over [0, pi) per FakeBlockLength samples, quantised to a
// multiple of 8 counts.
func FakeSample(k int) int16 {
	x := math.Pi * float64(k%FakeBlockLength) / FakeBlockLength
	v := math.Sin(50 * x)
	return int16(math.Floor(v*18/50*32768/8) * 8)
}

const fakeHandle int16 = 1

// FakeScopeDriver simulates a PicoScope 4000A in streaming mode. Samples
// become available at the configured sample interval of wall time, as
// measured by Now.
type FakeScopeDriver struct {
	mu sync.Mutex

	// Now is the clock used to decide how many samples are due.
	Now func() time.Time

	open      bool
	buffers   map[Channel][]int16
	streaming bool
	interval  time.Duration
	started   time.Time
	produced  int64
	writePos  int
	position  int
}

func NewFakeScopeDriver() *FakeScopeDriver {
	return &FakeScopeDriver{
		Now:      time.Now,
		buffers:  make(map[Channel][]int16),
		position: rand.Intn(10000),
	}
}

func (f *FakeScopeDriver) OpenUnit() (int16, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	return fakeHandle, StatusOK
}

func (f *FakeScopeDriver) ChangePowerSource(handle int16, state Status) Status {
	return f.check(handle)
}

func (f *FakeScopeDriver) CloseUnit(handle int16) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || handle != fakeHandle {
		return StatusInvalidHandle
	}
	f.open = false
	f.streaming = false
	f.buffers = make(map[Channel][]int16)
	return StatusOK
}

func (f *FakeScopeDriver) check(handle int16) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || handle != fakeHandle {
		return StatusInvalidHandle
	}
	return StatusOK
}

func (f *FakeScopeDriver) SetChannel(handle int16, ch Channel, enabled bool, coupling Coupling, rng Range, analogOffset float32) Status {
	if st := f.check(handle); st != StatusOK {
		return st
	}
	if !ch.Valid() {
		return StatusInvalidChannel
	}
	if _, ok := rng.Scale(); !ok {
		return StatusInvalidVoltageRange
	}
	return StatusOK
}

// GetTimebase follows the 4824 formula: (timebase+1) * 12.5ns.
func (f *FakeScopeDriver) GetTimebase(handle int16, timebase uint32, noSamples int32, segment uint32) (int32, int32, Status) {
	if st := f.check(handle); st != StatusOK {
		return 0, 0, st
	}
	interval := int32(float64(timebase+1) * 12.5)
	return interval, 256 << 20, StatusOK
}

func (f *FakeScopeDriver) SetDataBuffer(handle int16, ch Channel, length int32, segment uint32, mode RatioMode) ([]int16, Status) {
	if st := f.check(handle); st != StatusOK {
		return nil, st
	}
	if !ch.Valid() {
		return nil, StatusInvalidChannel
	}
	if length <= 0 {
		return nil, StatusInvalidParameter
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]int16, length)
	f.buffers[ch] = buf
	return buf, StatusOK
}

func (f *FakeScopeDriver) RunStreaming(handle int16, interval *uint32, unit TimeUnit, maxPreTrigger, maxPostTrigger uint32, autoStop bool, downSampleRatio uint32, mode RatioMode, bufferLength uint32) Status {
	if st := f.check(handle); st != StatusOK {
		return st
	}
	if interval == nil || *interval == 0 {
		return StatusInvalidParameter
	}
	if downSampleRatio == 0 {
		return StatusInvalidSampleRatio
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buffers) == 0 {
		return StatusInvalidState
	}
	ns := unit.Nanoseconds(*interval) * float64(downSampleRatio)
	if ns < 1 {
		ns = 1
	}
	f.interval = time.Duration(ns)
	f.started = f.Now()
	f.produced = 0
	f.writePos = 0
	f.streaming = true
	return StatusOK
}

// GetStreamingLatestValues writes every due sample into the registered
// buffers, wrapping at the buffer end, and reports them in at most two
// callbacks.
func (f *FakeScopeDriver) GetStreamingLatestValues(handle int16, ready StreamingReadyFunc) Status {
	if st := f.check(handle); st != StatusOK {
		return st
	}
	f.mu.Lock()
	if !f.streaming {
		f.mu.Unlock()
		return StatusInvalidState
	}

	due := int64(f.Now().Sub(f.started) / f.interval)
	pending := due - f.produced
	length := f.bufferLength()
	if pending > int64(length) {
		// the real driver drops what the overview buffer could not hold
		f.produced += pending - int64(length)
		f.position += int(pending) - length
		pending = int64(length)
	}

	var chunks []StreamingReady
	for pending > 0 {
		n := length - f.writePos
		if int64(n) > pending {
			n = int(pending)
		}
		for _, buf := range f.buffers {
			for i := 0; i < n; i++ {
				buf[f.writePos+i] = FakeSample(f.position + i)
			}
		}
		chunks = append(chunks, StreamingReady{
			Handle:      handle,
			NoOfSamples: int32(n),
			StartIndex:  uint32(f.writePos),
		})
		f.position += n
		f.produced += int64(n)
		f.writePos = (f.writePos + n) % length
		pending -= int64(n)
	}
	f.mu.Unlock()

	for _, c := range chunks {
		ready(c)
	}
	return StatusOK
}

func (f *FakeScopeDriver) bufferLength() int {
	for _, b := range f.buffers {
		return len(b)
	}
	return 0
}

func (f *FakeScopeDriver) Stop(handle int16) Status {
	if st := f.check(handle); st != StatusOK {
		return st
	}
	f.mu.Lock()
	f.streaming = false
	f.mu.Unlock()
	return StatusOK
}

// FakeDrDAQDriver simulates a USB DrDAQ. A block is ready once its block
// time has passed on Now.
type FakeDrDAQDriver struct {
	mu sync.Mutex

	Now func() time.Time

	open       bool
	usForBlock uint32
	samples    uint32
	inputs     []Input
	running    bool
	started    time.Time
}

func NewFakeDrDAQDriver() *FakeDrDAQDriver {
	return &FakeDrDAQDriver{Now: time.Now}
}

func (f *FakeDrDAQDriver) OpenUnit() (int16, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	return fakeHandle, StatusOK
}

func (f *FakeDrDAQDriver) check(handle int16) Status {
	if !f.open || handle != fakeHandle {
		return StatusInvalidHandle
	}
	return StatusOK
}

func (f *FakeDrDAQDriver) CloseUnit(handle int16) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return st
	}
	f.open = false
	f.running = false
	return StatusOK
}

func (f *FakeDrDAQDriver) SetInterval(handle int16, usForBlock uint32, idealSamples uint32, inputs []Input) (uint32, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return 0, st
	}
	if usForBlock == 0 || idealSamples == 0 || len(inputs) == 0 {
		return 0, StatusInvalidParameter
	}
	for _, in := range inputs {
		if !in.Valid() {
			return 0, StatusInvalidChannel
		}
	}
	f.usForBlock = usForBlock
	f.samples = idealSamples
	f.inputs = append([]Input(nil), inputs...)
	return usForBlock, StatusOK
}

func (f *FakeDrDAQDriver) Run(handle int16, noOfValues uint32, method BlockMethod) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return st
	}
	if f.samples == 0 {
		return StatusInvalidState
	}
	if noOfValues == 0 {
		return StatusInvalidParameter
	}
	f.samples = noOfValues
	f.started = f.Now()
	f.running = true
	return StatusOK
}

func (f *FakeDrDAQDriver) Ready(handle int16) (bool, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return false, st
	}
	if !f.running {
		return false, StatusOK
	}
	block := time.Duration(f.usForBlock) * time.Microsecond
	return f.Now().Sub(f.started) >= block, StatusOK
}

func (f *FakeDrDAQDriver) Stop(handle int16) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return st
	}
	f.running = false
	return StatusOK
}

func (f *FakeDrDAQDriver) GetValues(handle int16, values []int16) (uint32, uint16, uint32, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return 0, 0, 0, st
	}
	if !f.running {
		return 0, 0, 0, StatusDataNotAvailable
	}
	want := int(f.samples) * len(f.inputs)
	if len(values) < want {
		want = len(values)
	}
	for i := 0; i < want; i++ {
		values[i] = FakeSample(i / len(f.inputs))
	}
	return uint32(want), 0, 0, StatusOK
}

func (f *FakeDrDAQDriver) GetScalings(handle int16, in Input) (Scalings, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return Scalings{}, st
	}
	if !in.Valid() {
		return Scalings{}, StatusInvalidChannel
	}
	names := splitNames([]byte("Scope,Scope (+/-1.25V)\x00"))
	return Scalings{Count: int16(len(names)), Current: 0, Names: names}, StatusOK
}

func (f *FakeDrDAQDriver) GetUnitInfo(handle int16, kind InfoKind) (string, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.check(handle); st != StatusOK {
		return "", st
	}
	switch kind {
	case InfoDriverVersion:
		return "fake", StatusOK
	case InfoVariantInfo:
		return "USB DrDAQ (fake)", StatusOK
	case InfoBatchAndSerial:
		return "FAKE/0000", StatusOK
	}
	return "", StatusOK
}
