package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pqpico/picodaq/internal/config"
	"github.com/pqpico/picodaq/internal/session"
)

// setupFake points the globals at a temporary data dir in fake data mode.
func setupFake(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()

	dataDir := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.FakeData = true
	cfg.Streaming.PollInterval = "10ms"
	cfg.DrDAQ.Wait = "0s"
	cfg.Storage.DataDir = dataDir
	cfg.Storage.Catalog = filepath.Join(dataDir, "catalog.db")

	streamSettle = 0
	streamLinger = 0
	streamPolls = -1
	streamDuration = 0
	t.Cleanup(func() { cfg = nil })
	return dataDir
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func sessionDirs(t *testing.T, dataDir string) []string {
	t.Helper()
	dirs, err := filepath.Glob(filepath.Join(dataDir, "*__1MS"))
	require.NoError(t, err)
	return dirs
}

func TestStreamCmd_Polls(t *testing.T) {
	dataDir := setupFake(t)
	streamPolls = 2

	cmd, out := newCmd()
	require.NoError(t, runStream(cmd, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)

	dirs := sessionDirs(t, dataDir)
	require.Len(t, dirs, 1)
	_, err := os.Stat(filepath.Join(dirs[0], "parameters.yaml"))
	assert.NoError(t, err)
}

func TestStreamCmd_RecordThenInspect(t *testing.T) {
	dataDir := setupFake(t)
	streamDuration = 100 * time.Millisecond

	cmd, _ := newCmd()
	require.NoError(t, runStream(cmd, nil))

	dirs := sessionDirs(t, dataDir)
	require.Len(t, dirs, 1)
	files, err := session.BlockFiles(dirs[0])
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	cmd, out := newCmd()
	require.NoError(t, runSessions(cmd, nil))
	assert.Contains(t, out.String(), "1MS (fake)")
	assert.Contains(t, out.String(), dirs[0])

	spectrumChunk = 256
	spectrumAverage = 4
	spectrumHeight = 64
	spectrumOut = filepath.Join(t.TempDir(), "fft.jpg")
	cmd, out = newCmd()
	require.NoError(t, runSpectrum(cmd, []string{dirs[0]}))
	assert.Contains(t, out.String(), "peak")
	_, err = os.Stat(spectrumOut)
	assert.NoError(t, err)
}

func TestSessionsCmd_Empty(t *testing.T) {
	setupFake(t)
	cmd, out := newCmd()
	require.NoError(t, runSessions(cmd, nil))
	assert.Contains(t, out.String(), "no sessions recorded")
}

func TestSpectrumCmd_NoBlocks(t *testing.T) {
	setupFake(t)
	cmd, _ := newCmd()
	assert.ErrorContains(t, runSpectrum(cmd, []string{t.TempDir()}), "no block files")
}

func TestSingleShotCmd(t *testing.T) {
	setupFake(t)
	cfg.DrDAQ.BlockTimeUS = 1000
	cfg.DrDAQ.Samples = 50
	singleShotShow = 3

	cmd, out := newCmd()
	require.NoError(t, runSingleShot(cmd, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "50 values", lines[0])
}

func TestParamsCmd(t *testing.T) {
	setupFake(t)
	cmd, out := newCmd()
	require.NoError(t, paramsCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "# defaults")
	assert.Contains(t, out.String(), "[streaming]")
	assert.Contains(t, out.String(), "buffer_length = 1000000")
}

func TestSingleShotCmd_NegativeShow(t *testing.T) {
	setupFake(t)
	cfg.DrDAQ.BlockTimeUS = 1000
	cfg.DrDAQ.Samples = 50
	singleShotShow = -1

	cmd, out := newCmd()
	require.NoError(t, runSingleShot(cmd, nil))
	assert.Equal(t, "50 values", strings.TrimSpace(out.String()))
}

func TestSingleShotCmd_BadWait(t *testing.T) {
	setupFake(t)
	cfg.DrDAQ.Wait = "later"

	cmd, _ := newCmd()
	assert.ErrorContains(t, runSingleShot(cmd, nil), "drdaq.wait")
}

func TestStreamCmd_BadPollInterval(t *testing.T) {
	setupFake(t)
	cfg.Streaming.PollInterval = "0s"

	cmd, _ := newCmd()
	assert.ErrorContains(t, runStream(cmd, nil), "poll_interval")
}

func TestSpectrumCmd_RejectsChunkSize(t *testing.T) {
	setupFake(t)
	for _, chunk := range []int{0, -8, 100} {
		spectrumChunk = chunk
		spectrumAverage = 0
		cmd, _ := newCmd()
		assert.ErrorContains(t, runSpectrum(cmd, []string{t.TempDir()}), "power of two")
	}
	spectrumChunk = 1024
}
