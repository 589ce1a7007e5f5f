//go:build picosdk

package picodaq

/*
#include <stdint.h>
*/
import "C"
import (
	"runtime/cgo"
	"unsafe"
)

// goStreamingReady is called by the ps4000a driver from inside
// ps4000aGetStreamingLatestValues. pParameter carries the cgo.Handle of the
// Go callback.

//export goStreamingReady
func goStreamingReady(handle C.int16_t, noOfSamples C.int32_t, startIndex C.uint32_t, overflow C.int16_t, triggerAt C.uint32_t, triggered C.int16_t, autoStop C.int16_t, pParameter unsafe.Pointer) {
	ready, ok := cgo.Handle(uintptr(pParameter)).Value().(StreamingReadyFunc)
	if !ok || ready == nil {
		return
	}
	ready(StreamingReady{
		Handle:      int16(handle),
		NoOfSamples: int32(noOfSamples),
		StartIndex:  uint32(startIndex),
		Overflow:    int16(overflow),
		TriggerAt:   uint32(triggerAt),
		Triggered:   triggered != 0,
		AutoStop:    autoStop != 0,
	})
}
