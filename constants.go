package picodaq

import (
	"fmt"
	"math"
)

// Channel is a PicoScope 4000A input channel.
type Channel int16

const (
	ChannelA Channel = iota
	ChannelB
	ChannelC
	ChannelD
	ChannelE
	ChannelF
	ChannelG
	ChannelH

	// ChannelNone is the value the 4000A API uses for "no channel" (for
	// example as a trigger source).
	ChannelNone Channel = 5
)

// MaxChannels is the number of analog inputs on the 4824.
const MaxChannels = 8

// Valid reports whether c names one of the eight analog inputs.
func (c Channel) Valid() bool {
	return c >= ChannelA && c <= ChannelH
}

// Label returns the name used in block file names: CH1 for channel A and so on.
func (c Channel) Label() string {
	return fmt.Sprintf("CH%d", int(c)+1)
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", int16(c))
	}
	return string(rune('A' + c))
}

// Range is the vertical input range of a channel.
type Range int16

const (
	Range10mV Range = iota
	Range20mV
	Range50mV
	Range100mV
	Range200mV
	Range500mV
	Range1V
	Range2V
	Range5V
	Range10V
	Range20V
	Range50V
	Range100V
	Range200V
)

var rangeScale = map[Range]float64{
	Range10mV:  0.01,
	Range20mV:  0.02,
	Range50mV:  0.05,
	Range100mV: 0.1,
	Range200mV: 0.2,
	Range500mV: 0.5,
	Range1V:    1.0,
	Range2V:    2.0,
	Range5V:    5.0,
	Range10V:   10.0,
	Range20V:   20.0,
	Range50V:   50.0,
	Range100V:  100.0,
	Range200V:  200.0,
}

// Scale returns the full scale of the range in volts.
func (r Range) Scale() (float64, bool) {
	v, ok := rangeScale[r]
	return v, ok
}

func (r Range) String() string {
	v, ok := rangeScale[r]
	if !ok {
		return fmt.Sprintf("Range(%d)", int16(r))
	}
	if v < 1 {
		return fmt.Sprintf("%gmV", math.Round(v*1000))
	}
	return fmt.Sprintf("%gV", v)
}

// ADC limits of the 4000A in 16 bit mode.
const (
	MaxADC = 32768
	MinADC = -32767
)

// AnalogOffsetZero is the default analog offset of a channel.
const AnalogOffsetZero float32 = 0

// TimeUnit is the unit of a streaming sample interval.
type TimeUnit int32

const (
	Femtoseconds TimeUnit = iota
	Picoseconds
	Nanoseconds
	Microseconds
	Milliseconds
	Seconds
)

// ratePrefix maps a time unit to the SI prefix of the matching sample rate
// (a 1 us interval is 1 MS/s, so microseconds index the 'M' slot via unit-1).
var ratePrefix = map[TimeUnit]string{
	Femtoseconds: "T",
	Picoseconds:  "G",
	Nanoseconds:  "M",
	Microseconds: "k",
	Milliseconds: "",
	Seconds:      "",
}

// RatePrefix returns the SI prefix used in sample-rate strings for u.
func RatePrefix(u TimeUnit) (string, bool) {
	p, ok := ratePrefix[u]
	return p, ok
}

// Nanoseconds converts n units of u to nanoseconds.
func (u TimeUnit) Nanoseconds(n uint32) float64 {
	switch u {
	case Femtoseconds:
		return float64(n) / 1e6
	case Picoseconds:
		return float64(n) / 1e3
	case Nanoseconds:
		return float64(n)
	case Microseconds:
		return float64(n) * 1e3
	case Milliseconds:
		return float64(n) * 1e6
	default:
		return float64(n) * 1e9
	}
}

func (u TimeUnit) String() string {
	switch u {
	case Femtoseconds:
		return "fs"
	case Picoseconds:
		return "ps"
	case Nanoseconds:
		return "ns"
	case Microseconds:
		return "us"
	case Milliseconds:
		return "ms"
	case Seconds:
		return "s"
	}
	return fmt.Sprintf("TimeUnit(%d)", int32(u))
}

// Coupling selects AC or DC input coupling.
type Coupling int16

const (
	CouplingAC Coupling = iota
	CouplingDC
)

// RatioMode is the downsampling mode used by RunStreaming and SetDataBuffer.
type RatioMode int32

const (
	RatioModeNone      RatioMode = 0
	RatioModeAggregate RatioMode = 1
	RatioModeDecimate  RatioMode = 2
	RatioModeAverage   RatioMode = 4
)

// Input is a USB DrDAQ input.
type Input int16

const (
	InputExt1 Input = iota + 1
	InputExt2
	InputExt3
	InputScope
	InputPH
	InputResistance
	InputLight
	InputTemperature
	InputMicWave
	InputMicLevel
)

// Valid reports whether in names a DrDAQ input.
func (in Input) Valid() bool {
	return in >= InputExt1 && in <= InputMicLevel
}

// BlockMethod selects how the DrDAQ collects a block of samples.
type BlockMethod int16

const (
	BlockSingle BlockMethod = iota
	BlockWindow
	BlockStream
)

// InfoKind selects one of the unit information strings.
type InfoKind int16

const (
	InfoDriverVersion InfoKind = iota
	InfoUSBVersion
	InfoHardwareVersion
	InfoVariantInfo
	InfoBatchAndSerial
	InfoCalDate
	InfoKernelVersion
)

func (k InfoKind) String() string {
	switch k {
	case InfoDriverVersion:
		return "driver version"
	case InfoUSBVersion:
		return "usb version"
	case InfoHardwareVersion:
		return "hardware version"
	case InfoVariantInfo:
		return "variant"
	case InfoBatchAndSerial:
		return "batch and serial"
	case InfoCalDate:
		return "calibration date"
	case InfoKernelVersion:
		return "kernel version"
	}
	return fmt.Sprintf("InfoKind(%d)", int16(k))
}
