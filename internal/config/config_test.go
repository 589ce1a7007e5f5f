package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pqpico/picodaq"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, picodaq.Microseconds, cfg.StreamingParams().Unit)
	assert.Equal(t, picodaq.Range50V, cfg.ChannelParams().Range)
	assert.Equal(t, picodaq.CouplingDC, cfg.ChannelParams().Coupling)
	assert.Equal(t, []picodaq.Input{picodaq.InputScope}, cfg.BlockParams().Inputs)
	assert.Equal(t, picodaq.BlockWindow, cfg.BlockParams().Method)
	assert.Equal(t, uint32(99), cfg.TimebaseParams().Timebase)

	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, d)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv("PICODAQ_DATA_DIR", "")
	t.Setenv("PICODAQ_FAKE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Streaming, cfg.Streaming)
	assert.Empty(t, cfg.Path())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PICODAQ_DATA_DIR", "")
	t.Setenv("PICODAQ_FAKE", "")
	t.Setenv("PICODAQ_VERBOSE", "")

	path := filepath.Join(t.TempDir(), "parameters.yaml")
	cfg := DefaultConfig()
	cfg.Streaming.SampleInterval = 2
	cfg.Channel.Range = int16(picodaq.Range2V)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), loaded.Streaming.SampleInterval)
	assert.Equal(t, picodaq.Range2V, loaded.ChannelParams().Range)
	assert.Equal(t, path, loaded.Path())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("streaming:\n  buffer_length: 5000\nverbose: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), cfg.Streaming.BufferLength)
	assert.Equal(t, uint32(1), cfg.Streaming.SampleInterval)
	assert.True(t, cfg.Verbose)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("streaming: [1, 2"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse parameter file")
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PICODAQ_DATA_DIR", "/srv/pqpico")
	t.Setenv("PICODAQ_FAKE", "true")
	t.Setenv("PICODAQ_VERBOSE", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/pqpico", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/srv/pqpico", "catalog.db"), cfg.Storage.Catalog)
	assert.True(t, cfg.FakeData)
	assert.True(t, cfg.Verbose)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Streaming.SampleInterval = 0 }, "sample_interval"},
		{"bad unit", func(c *Config) { c.Streaming.SampleIntervalUnit = 9 }, "sample_interval_unit"},
		{"zero buffer", func(c *Config) { c.Streaming.BufferLength = 0 }, "buffer_length"},
		{"bad poll", func(c *Config) { c.Streaming.PollInterval = "soon" }, "poll_interval"},
		{"bad channel", func(c *Config) { c.Channel.Channel = 8 }, "channel.channel"},
		{"bad range", func(c *Config) { c.Channel.Range = 14 }, "channel.range"},
		{"no inputs", func(c *Config) { c.DrDAQ.Inputs = nil }, "drdaq.inputs"},
		{"bad input", func(c *Config) { c.DrDAQ.Inputs = []int16{11} }, "not a DrDAQ input"},
		{"no data dir", func(c *Config) { c.Storage.DataDir = "" }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_Sections(t *testing.T) {
	cfg := DefaultConfig()
	secs := cfg.Sections()
	require.Len(t, secs, 4)
	assert.Equal(t, "streaming", secs[0].Name)

	var found bool
	for _, kv := range secs[0].Values {
		if kv.Key == "buffer_length" {
			found = true
			assert.Equal(t, 1_000_000, kv.Value)
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1_000_000, cfg.Parameters()["streaming_buffer_length"])
}
