package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pqpico/picodaq"
	"github.com/pqpico/picodaq/internal/session"
	"github.com/pqpico/picodaq/internal/spectrum"
)

var (
	spectrumChunk   int
	spectrumAverage int
	spectrumHeight  int
	spectrumRate    float64
	spectrumOut     string
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum <session-dir>",
	Short: "Average the spectrum of a recorded session into a JPEG plot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpectrum,
}

func init() {
	spectrumCmd.Flags().IntVar(&spectrumChunk, "chunk", 1024, "FFT length, a power of two")
	spectrumCmd.Flags().IntVar(&spectrumAverage, "average", 64, "Maximum number of chunks to average")
	spectrumCmd.Flags().IntVar(&spectrumHeight, "height", 512, "Plot height in pixels")
	spectrumCmd.Flags().Float64Var(&spectrumRate, "sample-rate", 0, "Sample rate in Hz (default from parameters)")
	spectrumCmd.Flags().StringVarP(&spectrumOut, "output", "o", "", "Output file (default <session-dir>/spectrum.jpg)")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if spectrumChunk <= 0 || spectrumChunk&(spectrumChunk-1) != 0 {
		return fmt.Errorf("--chunk %d is not a positive power of two", spectrumChunk)
	}

	rate := spectrumRate
	if rate <= 0 {
		p := cfg.StreamingParams()
		rate = 1e9 / p.Unit.Nanoseconds(p.SampleInterval)
	}

	files, err := session.BlockFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no block files in %s", dir)
	}

	rng := cfg.ChannelParams().Range
	need := spectrumChunk * spectrumAverage
	var samples []complex64
	for _, f := range files {
		raw, err := session.ReadBlock(f)
		if err != nil {
			return err
		}
		c := make([]complex64, len(raw))
		picodaq.ConvertI16toC64(c, raw, rng)
		samples = append(samples, c...)
		if len(samples) >= need {
			break
		}
	}

	chunks := spectrum.Chunks(samples, spectrumChunk, spectrumAverage)
	logger.Debug("computing fft", zap.Int("chunks", len(chunks)), zap.Int("chunk", spectrumChunk), zap.Float64("sample_rate", rate))
	fftDb, err := spectrum.Average(chunks, rate)
	if err != nil {
		return err
	}

	out := spectrumOut
	if out == "" {
		out = filepath.Join(dir, "spectrum.jpg")
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := spectrum.WriteJPEG(f, spectrum.Render(fftDb, spectrumHeight)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	freq, level := spectrum.Peak(fftDb, rate)
	fmt.Fprintf(cmd.OutOrStdout(), "peak %.1f Hz at %.1f dB (%d chunks)\nsaved %s\n", freq, level, len(chunks), out)
	return nil
}
