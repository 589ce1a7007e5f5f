//go:build picosdk

package picodaq

/*
#cgo linux CFLAGS: -I/opt/picoscope/include/libps4000a
#cgo linux LDFLAGS: -L/opt/picoscope/lib -lps4000a
#cgo darwin CFLAGS: -I/Applications/PicoScope6.app/Contents/Resources/include/libps4000a
#cgo darwin LDFLAGS: -L/Applications/PicoScope6.app/Contents/Resources/lib -lps4000a
#cgo windows LDFLAGS: -lps4000a

#include <stdlib.h>
#include <stdint.h>
#include <ps4000aApi.h>

extern void goStreamingReady(int16_t handle, int32_t noOfSamples, uint32_t startIndex, int16_t overflow, uint32_t triggerAt, int16_t triggered, int16_t autoStop, void *pParameter);

// streamingReady forwards the driver callback to Go.
static void streamingReady(int16_t handle, int32_t noOfSamples, uint32_t startIndex, int16_t overflow, uint32_t triggerAt, int16_t triggered, int16_t autoStop, void *pParameter) {
	goStreamingReady(handle, noOfSamples, startIndex, overflow, triggerAt, triggered, autoStop, pParameter);
}

static PICO_STATUS getStreamingLatestValues(int16_t handle, uintptr_t ctx) {
	return ps4000aGetStreamingLatestValues(handle, (ps4000aStreamingReady)streamingReady, (void *)ctx);
}
*/
import "C"
import (
	"runtime/cgo"
	"sync"
	"unsafe"
)

type nativeScope struct {
	mu sync.Mutex
	// buffers holds the C allocated sample memory per handle and channel;
	// the driver keeps writing into it until the unit is closed.
	buffers map[int16]map[Channel]unsafe.Pointer
}

// NewNativeScopeDriver returns the ps4000a driver linked into this binary.
func NewNativeScopeDriver() (ScopeDriver, error) {
	return &nativeScope{buffers: make(map[int16]map[Channel]unsafe.Pointer)}, nil
}

func cBool(b bool) C.int16_t {
	if b {
		return 1
	}
	return 0
}

func (n *nativeScope) OpenUnit() (int16, Status) {
	var h C.int16_t
	st := C.ps4000aOpenUnit(&h, nil)
	return int16(h), Status(st)
}

func (n *nativeScope) ChangePowerSource(handle int16, state Status) Status {
	return Status(C.ps4000aChangePowerSource(C.int16_t(handle), C.PICO_STATUS(state)))
}

func (n *nativeScope) CloseUnit(handle int16) Status {
	st := Status(C.ps4000aCloseUnit(C.int16_t(handle)))

	n.mu.Lock()
	for _, p := range n.buffers[handle] {
		C.free(p)
	}
	delete(n.buffers, handle)
	n.mu.Unlock()

	return st
}

func (n *nativeScope) SetChannel(handle int16, ch Channel, enabled bool, coupling Coupling, rng Range, analogOffset float32) Status {
	return Status(C.ps4000aSetChannel(
		C.int16_t(handle),
		C.PS4000A_CHANNEL(ch),
		cBool(enabled),
		C.PS4000A_COUPLING(coupling),
		C.PICO_CONNECT_PROBE_RANGE(rng),
		C.float(analogOffset)))
}

func (n *nativeScope) GetTimebase(handle int16, timebase uint32, noSamples int32, segment uint32) (int32, int32, Status) {
	var interval, maxSamples C.int32_t
	st := C.ps4000aGetTimebase(C.int16_t(handle), C.uint32_t(timebase), C.int32_t(noSamples),
		&interval, &maxSamples, C.uint32_t(segment))
	return int32(interval), int32(maxSamples), Status(st)
}

func (n *nativeScope) SetDataBuffer(handle int16, ch Channel, length int32, segment uint32, mode RatioMode) ([]int16, Status) {
	if length <= 0 {
		return nil, StatusInvalidParameter
	}
	p := C.calloc(C.size_t(length), C.size_t(int16Size))
	if p == nil {
		return nil, StatusMemoryFail
	}

	st := Status(C.ps4000aSetDataBuffer(C.int16_t(handle), C.PS4000A_CHANNEL(ch), (*C.int16_t)(p),
		C.int32_t(length), C.uint32_t(segment), C.PS4000A_RATIO_MODE(mode)))
	if st != StatusOK {
		C.free(p)
		return nil, st
	}

	n.mu.Lock()
	if n.buffers[handle] == nil {
		n.buffers[handle] = make(map[Channel]unsafe.Pointer)
	}
	if old, ok := n.buffers[handle][ch]; ok {
		C.free(old)
	}
	n.buffers[handle][ch] = p
	n.mu.Unlock()

	return unsafe.Slice((*int16)(p), int(length)), StatusOK
}

func (n *nativeScope) RunStreaming(handle int16, interval *uint32, unit TimeUnit, maxPreTrigger, maxPostTrigger uint32, autoStop bool, downSampleRatio uint32, mode RatioMode, bufferLength uint32) Status {
	ci := C.uint32_t(*interval)
	st := C.ps4000aRunStreaming(C.int16_t(handle), &ci, C.PS4000A_TIME_UNITS(unit),
		C.uint32_t(maxPreTrigger), C.uint32_t(maxPostTrigger), cBool(autoStop),
		C.uint32_t(downSampleRatio), C.PS4000A_RATIO_MODE(mode), C.uint32_t(bufferLength))
	*interval = uint32(ci)
	return Status(st)
}

func (n *nativeScope) GetStreamingLatestValues(handle int16, ready StreamingReadyFunc) Status {
	h := cgo.NewHandle(ready)
	defer h.Delete()
	return Status(C.getStreamingLatestValues(C.int16_t(handle), C.uintptr_t(h)))
}

func (n *nativeScope) Stop(handle int16) Status {
	return Status(C.ps4000aStop(C.int16_t(handle)))
}
