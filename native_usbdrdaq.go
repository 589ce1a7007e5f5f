//go:build picosdk

package picodaq

/*
#cgo linux CFLAGS: -I/opt/picoscope/include/libusbdrdaq
#cgo linux LDFLAGS: -L/opt/picoscope/lib -lusbdrdaq
#cgo darwin CFLAGS: -I/Applications/PicoScope6.app/Contents/Resources/include/libusbdrdaq
#cgo darwin LDFLAGS: -L/Applications/PicoScope6.app/Contents/Resources/lib -lusbdrdaq
#cgo windows LDFLAGS: -lUSBDrDAQ

#include <stdint.h>
#include <usbDrDaqApi.h>
*/
import "C"
import (
	"sync"
	"unsafe"
)

const unitInfoSize = 256
const scalingNamesSize = 1000

type nativeDrDAQ struct {
	mu sync.Mutex
	// inputs remembers how many inputs each handle interleaves.
	inputs map[int16]int
}

// NewNativeDrDAQDriver returns the usbdrdaq driver linked into this binary.
func NewNativeDrDAQDriver() (DrDAQDriver, error) {
	return &nativeDrDAQ{inputs: make(map[int16]int)}, nil
}

func (n *nativeDrDAQ) OpenUnit() (int16, Status) {
	var h C.int16_t
	st := C.UsbDrDaqOpenUnit(&h)
	return int16(h), Status(st)
}

func (n *nativeDrDAQ) CloseUnit(handle int16) Status {
	n.mu.Lock()
	delete(n.inputs, handle)
	n.mu.Unlock()
	return Status(C.UsbDrDaqCloseUnit(C.int16_t(handle)))
}

func (n *nativeDrDAQ) SetInterval(handle int16, usForBlock uint32, idealSamples uint32, inputs []Input) (uint32, Status) {
	if len(inputs) == 0 {
		return 0, StatusInvalidParameter
	}
	chans := make([]C.USB_DRDAQ_INPUTS, len(inputs))
	for i, in := range inputs {
		chans[i] = C.USB_DRDAQ_INPUTS(in)
	}

	us := C.uint32_t(usForBlock)
	st := Status(C.UsbDrDaqSetInterval(C.int16_t(handle), &us, C.uint32_t(idealSamples),
		&chans[0], C.int16_t(len(chans))))
	if st == StatusOK {
		n.mu.Lock()
		n.inputs[handle] = len(inputs)
		n.mu.Unlock()
	}
	return uint32(us), st
}

func (n *nativeDrDAQ) Run(handle int16, noOfValues uint32, method BlockMethod) Status {
	return Status(C.UsbDrDaqRun(C.int16_t(handle), C.uint32_t(noOfValues), C.BLOCK_METHOD(method)))
}

func (n *nativeDrDAQ) Ready(handle int16) (bool, Status) {
	var ready C.int16_t
	st := C.UsbDrDaqReady(C.int16_t(handle), &ready)
	return ready != 0, Status(st)
}

func (n *nativeDrDAQ) Stop(handle int16) Status {
	return Status(C.UsbDrDaqStop(C.int16_t(handle)))
}

func (n *nativeDrDAQ) GetValues(handle int16, values []int16) (uint32, uint16, uint32, Status) {
	if len(values) == 0 {
		return 0, 0, 0, StatusInvalidParameter
	}
	n.mu.Lock()
	inputs := n.inputs[handle]
	n.mu.Unlock()
	if inputs == 0 {
		return 0, 0, 0, StatusInvalidState
	}

	count := C.uint32_t(len(values) / inputs)
	var overflow C.uint16_t
	var trigger C.uint32_t
	st := C.UsbDrDaqGetValues(C.int16_t(handle), (*C.int16_t)(unsafe.Pointer(&values[0])),
		&count, &overflow, &trigger)
	return uint32(count) * uint32(inputs), uint16(overflow), uint32(trigger), Status(st)
}

func (n *nativeDrDAQ) GetScalings(handle int16, in Input) (Scalings, Status) {
	var count, current C.int16_t
	names := make([]byte, scalingNamesSize)
	st := C.UsbDrDaqGetScalings(C.int16_t(handle), C.USB_DRDAQ_INPUTS(in), &count, &current,
		(*C.int8_t)(unsafe.Pointer(&names[0])), C.int16_t(len(names)))
	return Scalings{
		Count:   int16(count),
		Current: int16(current),
		Names:   splitNames(names),
	}, Status(st)
}

func (n *nativeDrDAQ) GetUnitInfo(handle int16, kind InfoKind) (string, Status) {
	buf := make([]byte, unitInfoSize)
	var required C.int16_t
	st := C.UsbDrDaqGetUnitInfo(C.int16_t(handle), (*C.int8_t)(unsafe.Pointer(&buf[0])),
		C.int16_t(len(buf)), &required, C.PICO_INFO(kind))
	return cleanString(string(buf)), Status(st)
}
