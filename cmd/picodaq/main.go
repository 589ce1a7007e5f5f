package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pqpico/picodaq"
	"github.com/pqpico/picodaq/internal/config"
	"github.com/pqpico/picodaq/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	fakeData   bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "picodaq",
	Short: "Stream and record samples from PicoScope 4000A and USB DrDAQ units",
	Long: `picodaq drives a PicoScope 4000A series oscilloscope in streaming mode and
a USB DrDAQ in single-shot block mode.

Streamed blocks are written to a session folder named after the start time
and sample rate, next to a copy of the parameter file. Without a unit or the
Pico libraries it produces simulated samples instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if fakeData {
			cfg.FakeData = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid parameters in %s: %w", configPath, err)
		}

		logger, err = logging.New(cfg.Logging, verbose || cfg.Verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Parameter file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&fakeData, "fake", false, "Use simulated samples even if a unit is attached")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(singleShotCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(spectrumCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scopeDriver returns the native driver, or nil for fake data mode.
func scopeDriver() picodaq.ScopeDriver {
	if cfg.FakeData {
		return nil
	}
	drv, err := picodaq.NewNativeScopeDriver()
	if err != nil {
		if !errors.Is(err, picodaq.ErrNoLibrary) {
			logger.Warn("failed to load picoscope driver", zap.Error(err))
		}
		return nil
	}
	return drv
}

func drdaqDriver() picodaq.DrDAQDriver {
	if cfg.FakeData {
		return nil
	}
	drv, err := picodaq.NewNativeDrDAQDriver()
	if err != nil {
		if !errors.Is(err, picodaq.ErrNoLibrary) {
			logger.Warn("failed to load drdaq driver", zap.Error(err))
		}
		return nil
	}
	return drv
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
