package picodaq

// StreamingReady carries the arguments of the driver's streaming-ready
// callback. Samples for every registered channel buffer start at StartIndex.
type StreamingReady struct {
	Handle      int16
	NoOfSamples int32
	StartIndex  uint32
	// Overflow has bit n set when channel n went over range.
	Overflow  int16
	TriggerAt uint32
	Triggered bool
	AutoStop  bool
}

// Overflowed reports whether ch went over range in this chunk.
func (r StreamingReady) Overflowed(ch Channel) bool {
	return r.Overflow&(1<<uint(ch)) != 0
}

// StreamingReadyFunc is invoked by GetStreamingLatestValues, on the calling
// goroutine, once for each chunk of new samples.
type StreamingReadyFunc func(StreamingReady)

// ScopeDriver is the subset of the ps4000a API used to stream from a
// PicoScope 4000A.
type ScopeDriver interface {
	OpenUnit() (handle int16, status Status)
	ChangePowerSource(handle int16, state Status) Status
	CloseUnit(handle int16) Status

	SetChannel(handle int16, ch Channel, enabled bool, coupling Coupling, rng Range, analogOffset float32) Status
	GetTimebase(handle int16, timebase uint32, noSamples int32, segment uint32) (intervalNS int32, maxSamples int32, status Status)

	// SetDataBuffer registers a sample buffer of length samples for ch. The
	// returned slice aliases memory owned by the driver, which writes into it
	// during streaming; it stays valid until CloseUnit.
	SetDataBuffer(handle int16, ch Channel, length int32, segment uint32, mode RatioMode) ([]int16, Status)

	// RunStreaming starts streaming. interval is updated with the interval
	// the driver actually selected.
	RunStreaming(handle int16, interval *uint32, unit TimeUnit, maxPreTrigger, maxPostTrigger uint32, autoStop bool, downSampleRatio uint32, mode RatioMode, bufferLength uint32) Status
	GetStreamingLatestValues(handle int16, ready StreamingReadyFunc) Status
	Stop(handle int16) Status
}

// Scalings describes the scales available on a DrDAQ input.
type Scalings struct {
	Count   int16
	Current int16
	Names   []string
}

// DrDAQDriver is the subset of the usbdrdaq API used for block captures on a
// USB DrDAQ.
type DrDAQDriver interface {
	OpenUnit() (handle int16, status Status)
	CloseUnit(handle int16) Status

	// SetInterval asks for idealSamples over usForBlock microseconds and
	// returns the block time the driver settled on.
	SetInterval(handle int16, usForBlock uint32, idealSamples uint32, inputs []Input) (uint32, Status)
	Run(handle int16, noOfValues uint32, method BlockMethod) Status
	Ready(handle int16) (bool, Status)
	Stop(handle int16) Status

	// GetValues fills values and returns how many were written, a bitmap of
	// inputs that overflowed and the trigger index.
	GetValues(handle int16, values []int16) (n uint32, overflow uint16, triggerIndex uint32, status Status)
	GetScalings(handle int16, in Input) (Scalings, Status)
	GetUnitInfo(handle int16, kind InfoKind) (string, Status)
}
