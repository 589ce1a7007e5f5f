// Package session lays out recorded streaming data on disk: one folder per
// run named after its start time and sample rate, holding a copy of the
// parameter file and one file per block.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pqpico/picodaq"
)

const (
	// BlockExt is the extension of raw little-endian int16 block files.
	BlockExt = ".i16"
	// ComplexExt is the extension of interleaved float32 I/Q exports.
	ComplexExt = ".cf32"
)

// Session is one streaming run's folder.
type Session struct {
	ID      string
	Dir     string
	Rate    string
	Started time.Time
}

// SampleRateString names the sample rate for a sample interval, e.g. an
// interval of 2 us is "500k" and 1 us is "1M".
func SampleRateString(interval uint32, unit picodaq.TimeUnit) (string, error) {
	if interval == 0 {
		return "", errors.New("sample interval must be positive")
	}
	if interval == 1 {
		prefix, ok := picodaq.RatePrefix(unit - 1)
		if !ok {
			return "", fmt.Errorf("no rate prefix for 1 %s", unit)
		}
		return "1" + prefix, nil
	}
	prefix, ok := picodaq.RatePrefix(unit)
	if !ok {
		return "", fmt.Errorf("no rate prefix for %s", unit)
	}
	rate := strconv.FormatFloat(1000/float64(interval), 'f', -1, 64)
	return rate + prefix, nil
}

// FolderName is the session folder name, e.g. 2015-01-22__22-32-40__500kS.
func FolderName(t time.Time, rate string) string {
	return t.Format("2006-01-02__15-04-05__") + rate + "S"
}

// BlockFileName is the block file stem, e.g. CH1_20150122_22_32_40_123456.
func BlockFileName(ch picodaq.Channel, t time.Time) string {
	return fmt.Sprintf("%s_%s%06d", ch.Label(), t.Format("20060102_15_04_05_"), t.Nanosecond()/1000)
}

// Create makes the session folder under dataDir and copies paramFile into
// it, keeping the file's modification time. An empty paramFile is skipped.
func Create(dataDir string, now time.Time, rate, paramFile string) (*Session, error) {
	dir := filepath.Join(dataDir, FolderName(now, rate))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session folder: %w", err)
	}

	if paramFile != "" {
		if err := copyFile(paramFile, filepath.Join(dir, filepath.Base(paramFile))); err != nil {
			return nil, fmt.Errorf("failed to copy parameter file: %w", err)
		}
	}

	return &Session{
		ID:      uuid.New().String(),
		Dir:     dir,
		Rate:    rate,
		Started: now,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// WriteBlock writes b's samples to a new block file and returns its path.
// Blocks stamped with the same microsecond get the sequence number appended.
func (s *Session) WriteBlock(b picodaq.Block) (string, error) {
	stem := filepath.Join(s.Dir, BlockFileName(b.Channel, b.Time))
	path := stem + BlockExt

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		path = fmt.Sprintf("%s_%d%s", stem, b.Seq, BlockExt)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create block file: %w", err)
	}

	if _, err := f.Write(picodaq.I16BufferBytes(b.Samples)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write block file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write block file: %w", err)
	}
	return path, nil
}

// ExportComplex writes the block file at path as volts in complex64 form
// next to it and returns the new path.
func ExportComplex(path string, rng picodaq.Range) (string, error) {
	samples, err := ReadBlock(path)
	if err != nil {
		return "", err
	}
	c := make([]complex64, len(samples))
	picodaq.ConvertI16toC64(c, samples, rng)

	out := path[:len(path)-len(filepath.Ext(path))] + ComplexExt
	if err := os.WriteFile(out, picodaq.C64BufferBytes(c), 0644); err != nil {
		return "", fmt.Errorf("failed to write complex export: %w", err)
	}
	return out, nil
}

// ReadBlock loads a block file written by WriteBlock.
func ReadBlock(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read block file: %w", err)
	}
	return picodaq.FastI16BufferConvert(data), nil
}

// ReadComplex loads a file written by ExportComplex.
func ReadComplex(path string) ([]complex64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read complex export: %w", err)
	}
	return picodaq.FastC64BufferConvert(data), nil
}

// BlockFiles lists the block files in dir in name order, which is time order
// per channel.
func BlockFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+BlockExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
