package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pqpico/picodaq"
)

// DefaultPath is the parameter file looked up in the working directory.
const DefaultPath = "parameters.yaml"

// Config holds all acquisition parameters.
type Config struct {
	// Verbose turns on debug diagnostics.
	Verbose bool `yaml:"verbose"`
	// FakeData forces fake data mode even when a unit is attached.
	FakeData bool `yaml:"fake_data"`

	Streaming StreamingConfig `yaml:"streaming"`
	Channel   ChannelConfig   `yaml:"channel"`
	Timebase  TimebaseConfig  `yaml:"timebase"`
	DrDAQ     DrDAQConfig     `yaml:"drdaq"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`

	// path is where the config was loaded from, empty for defaults.
	path string
}

// StreamingConfig configures RunStreaming and the poll loop.
type StreamingConfig struct {
	SampleInterval      uint32 `yaml:"sample_interval"`
	SampleIntervalUnit  int32  `yaml:"sample_interval_unit"`
	BufferLength        uint32 `yaml:"buffer_length"`
	DownSampleRatio     uint32 `yaml:"down_sample_ratio"`
	DownSampleRatioMode int32  `yaml:"down_sample_ratio_mode"`
	PollInterval        string `yaml:"poll_interval"`
	Polls               int    `yaml:"polls"`
}

// ChannelConfig configures the streamed channel.
type ChannelConfig struct {
	Channel      int16   `yaml:"channel"`
	Enabled      bool    `yaml:"enabled"`
	DC           bool    `yaml:"dc"`
	Range        int16   `yaml:"range"`
	AnalogOffset float32 `yaml:"analog_offset"`
}

// TimebaseConfig is the timebase queried after opening the scope.
type TimebaseConfig struct {
	Timebase uint32 `yaml:"timebase"`
	Samples  int32  `yaml:"samples"`
	Segment  uint32 `yaml:"segment"`
}

// DrDAQConfig configures single-shot captures.
type DrDAQConfig struct {
	BlockTimeUS uint32  `yaml:"us_for_block"`
	Samples     uint32  `yaml:"samples"`
	Inputs      []int16 `yaml:"inputs"`
	BlockMethod int16   `yaml:"block_method"`
	// Wait is how long single-shot waits before fetching values.
	Wait string `yaml:"wait"`
}

// StorageConfig configures where sessions are written.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	Catalog string `yaml:"catalog"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the parameters used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Streaming: StreamingConfig{
			SampleInterval:     1,
			SampleIntervalUnit: int32(picodaq.Microseconds),
			BufferLength:       1_000_000,
			DownSampleRatio:    1,
			PollInterval:       "200ms",
			Polls:              3,
		},
		Channel: ChannelConfig{
			Channel: int16(picodaq.ChannelA),
			Enabled: true,
			DC:      true,
			Range:   int16(picodaq.Range50V),
		},
		Timebase: TimebaseConfig{
			Timebase: 99,
			Samples:  1000,
		},
		DrDAQ: DrDAQConfig{
			BlockTimeUS: 200000,
			Samples:     20000,
			Inputs:      []int16{int16(picodaq.InputScope)},
			BlockMethod: int16(picodaq.BlockWindow),
			Wait:        "1s",
		},
		Storage: StorageConfig{
			DataDir: "Data",
			Catalog: filepath.Join("Data", "catalog.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the parameter file at path on top of the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}
	cfg.path = path
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PICODAQ_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.Catalog = filepath.Join(v, "catalog.db")
	}
	if v := os.Getenv("PICODAQ_CATALOG"); v != "" {
		c.Storage.Catalog = v
	}
	if v := os.Getenv("PICODAQ_FAKE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FakeData = b
		}
	}
	if v := os.Getenv("PICODAQ_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Verbose = b
		}
	}
}

// Validate checks the configuration for values the drivers would reject.
func (c *Config) Validate() error {
	if c.Streaming.SampleInterval == 0 {
		return errors.New("streaming.sample_interval must be positive")
	}
	if c.Streaming.SampleIntervalUnit < int32(picodaq.Femtoseconds) || c.Streaming.SampleIntervalUnit > int32(picodaq.Seconds) {
		return fmt.Errorf("streaming.sample_interval_unit %d out of range 0..5", c.Streaming.SampleIntervalUnit)
	}
	if c.Streaming.BufferLength == 0 {
		return errors.New("streaming.buffer_length must be positive")
	}
	if c.Streaming.DownSampleRatio == 0 {
		return errors.New("streaming.down_sample_ratio must be positive")
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if !picodaq.Channel(c.Channel.Channel).Valid() {
		return fmt.Errorf("channel.channel %d out of range 0..7", c.Channel.Channel)
	}
	if _, ok := picodaq.Range(c.Channel.Range).Scale(); !ok {
		return fmt.Errorf("channel.range %d out of range 0..13", c.Channel.Range)
	}
	if len(c.DrDAQ.Inputs) == 0 {
		return errors.New("drdaq.inputs must name at least one input")
	}
	for _, in := range c.DrDAQ.Inputs {
		if !picodaq.Input(in).Valid() {
			return fmt.Errorf("drdaq.inputs: %d is not a DrDAQ input", in)
		}
	}
	if _, err := c.DrDAQWait(); err != nil {
		return err
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir must be set")
	}
	return nil
}

// PollInterval parses streaming.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Streaming.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("streaming.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("streaming.poll_interval must be positive")
	}
	return d, nil
}

// DrDAQWait parses drdaq.wait.
func (c *Config) DrDAQWait() (time.Duration, error) {
	d, err := time.ParseDuration(c.DrDAQ.Wait)
	if err != nil {
		return 0, fmt.Errorf("drdaq.wait: %w", err)
	}
	return d, nil
}

// StreamingParams converts the streaming section for picodaq.OpenScope.
func (c *Config) StreamingParams() picodaq.StreamingParams {
	return picodaq.StreamingParams{
		SampleInterval:  c.Streaming.SampleInterval,
		Unit:            picodaq.TimeUnit(c.Streaming.SampleIntervalUnit),
		BufferLength:    c.Streaming.BufferLength,
		DownSampleRatio: c.Streaming.DownSampleRatio,
		RatioMode:       picodaq.RatioMode(c.Streaming.DownSampleRatioMode),
	}
}

// ChannelParams converts the channel section.
func (c *Config) ChannelParams() picodaq.ChannelConfig {
	coupling := picodaq.CouplingAC
	if c.Channel.DC {
		coupling = picodaq.CouplingDC
	}
	return picodaq.ChannelConfig{
		Channel:      picodaq.Channel(c.Channel.Channel),
		Enabled:      c.Channel.Enabled,
		Coupling:     coupling,
		Range:        picodaq.Range(c.Channel.Range),
		AnalogOffset: c.Channel.AnalogOffset,
	}
}

// TimebaseParams converts the timebase section.
func (c *Config) TimebaseParams() picodaq.TimebaseRequest {
	return picodaq.TimebaseRequest{
		Timebase: c.Timebase.Timebase,
		Samples:  c.Timebase.Samples,
		Segment:  c.Timebase.Segment,
	}
}

// BlockParams converts the drdaq section.
func (c *Config) BlockParams() picodaq.BlockParams {
	inputs := make([]picodaq.Input, len(c.DrDAQ.Inputs))
	for i, in := range c.DrDAQ.Inputs {
		inputs[i] = picodaq.Input(in)
	}
	return picodaq.BlockParams{
		BlockTime: c.DrDAQ.BlockTimeUS,
		Samples:   c.DrDAQ.Samples,
		Inputs:    inputs,
		Method:    picodaq.BlockMethod(c.DrDAQ.BlockMethod),
	}
}

// Parameters returns the integer acquisition parameters keyed
// section_name, e.g. streaming_buffer_length.
func (c *Config) Parameters() map[string]int {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return map[string]int{
		"streaming_sample_interval":        int(c.Streaming.SampleInterval),
		"streaming_sample_interval_unit":   int(c.Streaming.SampleIntervalUnit),
		"streaming_buffer_length":          int(c.Streaming.BufferLength),
		"streaming_down_sample_ratio":      int(c.Streaming.DownSampleRatio),
		"streaming_down_sample_ratio_mode": int(c.Streaming.DownSampleRatioMode),
		"streaming_polls":                  c.Streaming.Polls,
		"channel_channel":                  int(c.Channel.Channel),
		"channel_enabled":                  b(c.Channel.Enabled),
		"channel_dc":                       b(c.Channel.DC),
		"channel_range":                    int(c.Channel.Range),
		"timebase_timebase":                int(c.Timebase.Timebase),
		"timebase_samples":                 int(c.Timebase.Samples),
		"timebase_segment":                 int(c.Timebase.Segment),
		"drdaq_us_for_block":               int(c.DrDAQ.BlockTimeUS),
		"drdaq_samples":                    int(c.DrDAQ.Samples),
		"drdaq_block_method":               int(c.DrDAQ.BlockMethod),
	}
}

// Section is one named group of parameters in file order.
type Section struct {
	Name   string
	Values []KeyValue
}

type KeyValue struct {
	Key   string
	Value int
}

// Sections groups Parameters by section, sorted by key within a section.
func (c *Config) Sections() []Section {
	order := []string{"streaming", "channel", "timebase", "drdaq"}
	params := c.Parameters()
	out := make([]Section, 0, len(order))
	for _, name := range order {
		sec := Section{Name: name}
		prefix := name + "_"
		for k, v := range params {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				sec.Values = append(sec.Values, KeyValue{Key: k[len(prefix):], Value: v})
			}
		}
		sort.Slice(sec.Values, func(i, j int) bool { return sec.Values[i].Key < sec.Values[j].Key })
		out = append(out, sec)
	}
	return out
}
