// Package spectrum averages windowed FFT power over recorded samples and
// draws the result as a line plot.
package spectrum

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	"github.com/racerxdl/segdsp/dsp"
	"github.com/racerxdl/segdsp/dsp/fft"
	"github.com/racerxdl/segdsp/tools"
)

// floor keeps log10 finite for empty bins.
const floor = 1e-20

var ErrNoData = errors.New("spectrum: not enough samples for one chunk")

// Chunks splits samples into at most max consecutive chunks of size
// samples. A trailing partial chunk is dropped. max <= 0 means no limit.
// A size <= 0 yields no chunks.
func Chunks(samples []complex64, size, max int) [][]complex64 {
	if size <= 0 {
		return nil
	}
	var out [][]complex64
	for pos := 0; pos+size <= len(samples); pos += size {
		if max > 0 && len(out) == max {
			break
		}
		out = append(out, samples[pos:pos+size])
	}
	return out
}

// Average returns the Blackman-Harris windowed FFT power in dB averaged over
// chunks. Every chunk must have the same power of two length. The input is
// not modified. Bin 0 is DC.
func Average(chunks [][]complex64, sampleRate float64) ([]float32, error) {
	if len(chunks) == 0 || len(chunks[0]) == 0 {
		return nil, ErrNoData
	}
	n := len(chunks[0])
	if n&(n-1) != 0 {
		return nil, fmt.Errorf("spectrum: chunk length %d is not a power of two", n)
	}

	window := dsp.BlackmanHarris(n, 61)
	fftDb := make([]float32, n)
	work := make([]complex64, n)

	for _, v := range chunks {
		if len(v) != n {
			return nil, fmt.Errorf("spectrum: chunk length %d, want %d", len(v), n)
		}
		for j := 0; j < n; j++ {
			w := float32(window[j])
			work[j] = complex(real(v[j])*w, imag(v[j])*w)
		}
		f := fft.FFT(work)

		for i := 0; i < len(f); i++ {
			p := float64(tools.ComplexAbsSquared(f[i])) / sampleRate
			fftDb[i] += float32(10 * math.Log10(p+floor))
		}
	}

	for i := range fftDb {
		fftDb[i] /= float32(len(chunks))
	}
	return fftDb, nil
}

// Peak finds the strongest positive frequency bin, skipping DC.
func Peak(fftDb []float32, sampleRate float64) (freq float64, level float32) {
	n := len(fftDb)
	if n < 2 {
		return 0, 0
	}
	best := 1
	for i := 2; i <= n/2; i++ {
		if fftDb[i] > fftDb[best] {
			best = i
		}
	}
	return float64(best) * sampleRate / float64(n), fftDb[best]
}

// Render plots fftDb centered on DC, one column per bin.
func Render(fftDb []float32, height int) *image.RGBA {
	fftMax := float32(math.Inf(-1))
	fftMin := float32(math.Inf(1))
	for _, v := range fftDb {
		if v > fftMax {
			fftMax = v
		}
		if v < fftMin {
			fftMin = v
		}
	}
	fftDelta := fftMax - fftMin
	if fftDelta == 0 {
		fftDelta = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, len(fftDb), height))
	size := img.Bounds()
	var lastX, lastY float32

	for i := 0; i < len(fftDb); i++ {
		iPos := (i + len(fftDb)/2) % len(fftDb)
		v := (fftMax - fftDb[iPos]) * (float32(size.Dy()-1) / fftDelta)
		x := float32(i)
		if i != 0 {
			DrawLine(lastX, lastY, x, v, color.NRGBA{R: 0, G: 127, B: 127, A: 255}, img)
		}
		lastX = x
		lastY = v
	}
	return img
}

// WriteJPEG encodes img as JPEG.
func WriteJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, nil)
}

func combine(c1, c2 color.Color) color.Color {
	r, g, b, a := c1.RGBA()
	r2, g2, b2, a2 := c2.RGBA()

	return color.RGBA{
		R: uint8((r + r2) >> 9), // halve, then 16 to 8 bit
		G: uint8((g + g2) >> 9),
		B: uint8((b + b2) >> 9),
		A: uint8((a + a2) >> 9),
	}
}

// DrawLine draws from (x0, y0) to (x1, y1) with a DDA. Translucent colors
// are blended with what is already there.
func DrawLine(x0, y0, x1, y1 float32, c color.Color, img *image.RGBA) {
	_, _, _, a := c.RGBA()
	needsCombine := a != 0xffff && a != 0
	dx := x1 - x0
	dy := y1 - y0
	steps := tools.Abs(dx)
	if tools.Abs(dy) > steps {
		steps = tools.Abs(dy)
	}
	if steps == 0 {
		return
	}

	xinc := dx / steps
	yinc := dy / steps

	x := x0
	y := y0
	for i := 0; i < int(steps); i++ {
		if needsCombine {
			img.Set(int(x), int(y), combine(img.At(int(x), int(y)), c))
		} else {
			img.Set(int(x), int(y), c)
		}
		x += xinc
		y += yinc
	}
}
