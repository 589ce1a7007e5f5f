package picodaq

import (
	"context"
	"encoding/binary"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/racerxdl/fastconvert"
	"go.uber.org/zap"
)

const int16Size = 2
const complex64Size = 8

func cleanString(s string) string {
	return strings.Trim(s, "\u0000 ")
}

// splitNames splits a NUL terminated, comma separated name list as returned
// by the DrDAQ scaling calls.
func splitNames(raw []byte) []string {
	s := string(raw)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	var names []string
	for _, n := range strings.Split(s, ",") {
		n = cleanString(n)
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// ADCToVolts converts a raw sample taken on rng to volts. Unknown ranges
// convert to NaN.
func ADCToVolts(sample int16, rng Range) float64 {
	scale, ok := rng.Scale()
	if !ok {
		return math.NaN()
	}
	return float64(sample) / MaxADC * scale
}

// ConvertI16toC64 writes src into dst as real valued complex samples scaled
// to volts. It returns the number of samples converted.
func ConvertI16toC64(dst []complex64, src []int16, rng Range) int {
	samples := len(src)
	if len(dst) < samples {
		samples = len(dst)
	}

	scale, ok := rng.Scale()
	if !ok {
		scale = 1
	}
	k := float32(scale / MaxADC)

	for idx := 0; idx < samples; idx++ {
		dst[idx] = complex(float32(src[idx])*k, 0)
	}
	return samples
}

// FastI16BufferConvert decodes a little endian int16 sample buffer.
func FastI16BufferConvert(data []byte) []int16 {
	var out = make([]int16, len(data)/int16Size)
	var pos = 0

	for idx := range out {
		out[idx] = int16(binary.LittleEndian.Uint16(data[pos : pos+int16Size]))
		pos += int16Size
	}

	return out
}

// I16BufferBytes encodes samples as little endian int16.
func I16BufferBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*int16Size)
	for idx, s := range samples {
		binary.LittleEndian.PutUint16(out[idx*int16Size:], uint16(s))
	}
	return out
}

// C64BufferBytes encodes samples as interleaved little endian float32 pairs.
func C64BufferBytes(samples []complex64) []byte {
	out := make([]byte, len(samples)*complex64Size)
	for idx, c := range samples {
		pos := idx * complex64Size
		binary.LittleEndian.PutUint32(out[pos:], math.Float32bits(real(c)))
		binary.LittleEndian.PutUint32(out[pos+4:], math.Float32bits(imag(c)))
	}
	return out
}

// FastC64BufferConvert decodes an interleaved float32 I/Q buffer.
func FastC64BufferConvert(data []byte) []complex64 {
	n := len(data) / complex64Size * complex64Size
	if n == 0 {
		return nil
	}
	return fastconvert.ByteArrayToComplex64Array(data[:n])
}

// streamPollLoop asks the driver for new values every interval until ctx is
// done. Driver calls are pinned to one OS thread because the native API
// delivers its callback on the calling thread.
func streamPollLoop(ctx context.Context, s *Scope, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		runtime.LockOSThread()
		err := s.GetStreamingLatestValues()
		runtime.UnlockOSThread()

		if err != nil {
			if StatusOf(err) == StatusBusy {
				s.log.Debug("driver busy, retrying", zap.Error(err))
				continue
			}
			return err
		}
		runtime.Gosched()
	}
}
