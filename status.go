package picodaq

import (
	"errors"
	"fmt"
)

// Status is a PICO_STATUS code returned by every driver entry point.
type Status uint32

const (
	StatusOK                        Status = 0x00
	StatusMaxUnitsOpened            Status = 0x01
	StatusMemoryFail                Status = 0x02
	StatusNotFound                  Status = 0x03
	StatusFWFail                    Status = 0x04
	StatusOpenOperationInProgress   Status = 0x05
	StatusOperationFailed           Status = 0x06
	StatusNotResponding             Status = 0x07
	StatusConfigFail                Status = 0x08
	StatusKernelDriverTooOld        Status = 0x09
	StatusEEPROMCorrupt             Status = 0x0A
	StatusOSNotSupported            Status = 0x0B
	StatusInvalidHandle             Status = 0x0C
	StatusInvalidParameter          Status = 0x0D
	StatusInvalidTimebase           Status = 0x0E
	StatusInvalidVoltageRange       Status = 0x0F
	StatusInvalidChannel            Status = 0x10
	StatusInvalidTriggerChannel     Status = 0x11
	StatusInvalidCondition          Status = 0x12
	StatusNoSignalGenerator         Status = 0x13
	StatusStreamingFailed           Status = 0x14
	StatusBlockModeFailed           Status = 0x15
	StatusNullParameter             Status = 0x16
	StatusDataNotAvailable          Status = 0x18
	StatusInvalidSampleRatio        Status = 0x40
	StatusInvalidState              Status = 0x41
	StatusNotEnoughSegments         Status = 0x42
	StatusDriverFunction            Status = 0x43
	StatusBusy                      Status = 0x46
	StatusNotUsed                   Status = 0x3F
	StatusUSB3DeviceNonUSB3Port     Status = 0x11A
	StatusPowerSupplyConnected      Status = 0x119
	StatusPowerSupplyNotConnected   Status = 0x11E
	StatusPowerSupplyRequestInvalid Status = 0x11F
	StatusPowerSupplyUnderVoltage   Status = 0x120
)

var statusNames = map[Status]string{
	StatusOK:                        "PICO_OK",
	StatusMaxUnitsOpened:            "PICO_MAX_UNITS_OPENED",
	StatusMemoryFail:                "PICO_MEMORY_FAIL",
	StatusNotFound:                  "PICO_NOT_FOUND",
	StatusFWFail:                    "PICO_FW_FAIL",
	StatusOpenOperationInProgress:   "PICO_OPEN_OPERATION_IN_PROGRESS",
	StatusOperationFailed:           "PICO_OPERATION_FAILED",
	StatusNotResponding:             "PICO_NOT_RESPONDING",
	StatusConfigFail:                "PICO_CONFIG_FAIL",
	StatusKernelDriverTooOld:        "PICO_KERNEL_DRIVER_TOO_OLD",
	StatusEEPROMCorrupt:             "PICO_EEPROM_CORRUPT",
	StatusOSNotSupported:            "PICO_OS_NOT_SUPPORTED",
	StatusInvalidHandle:             "PICO_INVALID_HANDLE",
	StatusInvalidParameter:          "PICO_INVALID_PARAMETER",
	StatusInvalidTimebase:           "PICO_INVALID_TIMEBASE",
	StatusInvalidVoltageRange:       "PICO_INVALID_VOLTAGE_RANGE",
	StatusInvalidChannel:            "PICO_INVALID_CHANNEL",
	StatusInvalidTriggerChannel:     "PICO_INVALID_TRIGGER_CHANNEL",
	StatusInvalidCondition:          "PICO_INVALID_CONDITION_CHANNEL",
	StatusNoSignalGenerator:         "PICO_NO_SIGNAL_GENERATOR",
	StatusStreamingFailed:           "PICO_STREAMING_FAILED",
	StatusBlockModeFailed:           "PICO_BLOCK_MODE_FAILED",
	StatusNullParameter:             "PICO_NULL_PARAMETER",
	StatusDataNotAvailable:          "PICO_DATA_NOT_AVAILABLE",
	StatusInvalidSampleRatio:        "PICO_INVALID_SAMPLERATIO",
	StatusInvalidState:              "PICO_INVALID_STATE",
	StatusNotEnoughSegments:         "PICO_NOT_ENOUGH_SEGMENTS",
	StatusDriverFunction:            "PICO_DRIVER_FUNCTION",
	StatusBusy:                      "PICO_BUSY",
	StatusNotUsed:                   "PICO_NOT_USED",
	StatusUSB3DeviceNonUSB3Port:     "PICO_USB3_0_DEVICE_NON_USB3_0_PORT",
	StatusPowerSupplyConnected:      "PICO_POWER_SUPPLY_CONNECTED",
	StatusPowerSupplyNotConnected:   "PICO_POWER_SUPPLY_NOT_CONNECTED",
	StatusPowerSupplyRequestInvalid: "PICO_POWER_SUPPLY_REQUEST_INVALID",
	StatusPowerSupplyUnderVoltage:   "PICO_POWER_SUPPLY_UNDERVOLTAGE",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("PICO_STATUS(0x%X)", uint32(s))
}

// needsPowerSource reports whether the unit opened but has to be told which
// supply to run from before it can be used.
func (s Status) needsPowerSource() bool {
	return s == StatusPowerSupplyNotConnected || s == StatusUSB3DeviceNonUSB3Port
}

// Err converts s into an error for op, nil for PICO_OK.
func (s Status) Err(op string) error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Op: op, Status: s}
}

// StatusError is returned when a driver call reports anything but PICO_OK.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// Is matches ErrStatus so callers can test for any driver failure.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

var (
	// ErrStatus matches every *StatusError.
	ErrStatus = errors.New("driver returned a non-OK status")

	// ErrNoLibrary is returned by the native driver constructors when the
	// binary was built without the vendor SDK.
	ErrNoLibrary = errors.New("picodaq: vendor driver library not available")

	// ErrOpenFailed is returned when the driver reports handle -1.
	ErrOpenFailed = errors.New("picodaq: failed to open unit")

	// ErrNotFound is returned when the driver reports handle 0.
	ErrNotFound = errors.New("picodaq: no unit found")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("picodaq: device closed")

	// ErrNoBuffer is returned when streaming starts without a registered
	// data buffer.
	ErrNoBuffer = errors.New("picodaq: no data buffer registered")
)

// StatusOf extracts the driver status from err, or StatusOK if err is nil or
// not a *StatusError.
func StatusOf(err error) Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusOK
}
