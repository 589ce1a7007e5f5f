package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pqpico/picodaq"
)

var started = time.Date(2015, 1, 22, 22, 32, 40, 123456789, time.UTC)

func TestSampleRateString(t *testing.T) {
	tests := []struct {
		interval uint32
		unit     picodaq.TimeUnit
		want     string
	}{
		{1, picodaq.Microseconds, "1M"},
		{2, picodaq.Microseconds, "500k"},
		{4, picodaq.Nanoseconds, "250M"},
		{1, picodaq.Milliseconds, "1k"},
		{10, picodaq.Milliseconds, "100"},
		{1, picodaq.Seconds, "1"},
		{3, picodaq.Microseconds, "333.3333333333333k"},
	}
	for _, tt := range tests {
		got, err := SampleRateString(tt.interval, tt.unit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d %s", tt.interval, tt.unit)
	}

	_, err := SampleRateString(0, picodaq.Microseconds)
	assert.Error(t, err)
	_, err = SampleRateString(1, picodaq.Femtoseconds)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "2015-01-22__22-32-40__500kS", FolderName(started, "500k"))
	assert.Equal(t, "CH1_20150122_22_32_40_123456", BlockFileName(picodaq.ChannelA, started))
	assert.Equal(t, "CH2_20150122_22_32_40_000000", BlockFileName(picodaq.ChannelB, started.Truncate(time.Second)))
}

func TestCreate_CopiesParameterFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "parameters.yaml")
	require.NoError(t, os.WriteFile(src, []byte("verbose: true\n"), 0644))
	mtime := time.Date(2014, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	dataDir := t.TempDir()
	s, err := Create(dataDir, started, "1M", src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "2015-01-22__22-32-40__1MS"), s.Dir)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "1M", s.Rate)

	copied := filepath.Join(s.Dir, "parameters.yaml")
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "verbose: true\n", string(data))

	info, err := os.Stat(copied)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))

	// creating the same folder again is allowed
	_, err = Create(dataDir, started, "1M", "")
	assert.NoError(t, err)
}

func TestCreate_MissingParameterFile(t *testing.T) {
	_, err := Create(t.TempDir(), started, "1M", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to copy parameter file")
}

func TestWriteReadBlock(t *testing.T) {
	s, err := Create(t.TempDir(), started, "1M", "")
	require.NoError(t, err)

	b := picodaq.Block{Seq: 7, Channel: picodaq.ChannelA, Samples: []int16{1, -2, 32767, -32768}, Time: started}
	path, err := s.WriteBlock(b)
	require.NoError(t, err)
	assert.Equal(t, "CH1_20150122_22_32_40_123456.i16", filepath.Base(path))

	got, err := ReadBlock(path)
	require.NoError(t, err)
	if diff := cmp.Diff(b.Samples, got); diff != "" {
		t.Errorf("block mismatch (-want +got):\n%s", diff)
	}

	// same timestamp, next block
	b.Seq = 8
	path2, err := s.WriteBlock(b)
	require.NoError(t, err)
	assert.Equal(t, "CH1_20150122_22_32_40_123456_8.i16", filepath.Base(path2))

	files, err := BlockFiles(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path, path2}, files)
}

func TestExportComplex(t *testing.T) {
	s, err := Create(t.TempDir(), started, "1M", "")
	require.NoError(t, err)
	path, err := s.WriteBlock(picodaq.Block{Channel: picodaq.ChannelA, Samples: []int16{16384, -16384}, Time: started})
	require.NoError(t, err)

	out, err := ExportComplex(path, picodaq.Range2V)
	require.NoError(t, err)
	assert.Equal(t, ".cf32", filepath.Ext(out))

	c, err := ReadComplex(out)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.InDelta(t, 1.0, real(c[0]), 1e-6)
	assert.InDelta(t, -1.0, real(c[1]), 1e-6)
}
