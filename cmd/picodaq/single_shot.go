package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pqpico/picodaq"
)

var singleShotShow int

var singleShotCmd = &cobra.Command{
	Use:   "single-shot",
	Short: "Capture one block from the DrDAQ",
	RunE:  runSingleShot,
}

func init() {
	singleShotCmd.Flags().IntVar(&singleShotShow, "show", 10, "Number of leading values to print")
}

func runSingleShot(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	wait, err := cfg.DrDAQWait()
	if err != nil {
		return err
	}

	d, err := picodaq.OpenDrDAQ(drdaqDriver(),
		picodaq.WithDrDAQLogger(logger.Named("drdaq")),
		picodaq.WithBlock(cfg.BlockParams()),
	)
	if err != nil {
		return fmt.Errorf("failed to open drdaq: %w", err)
	}
	defer d.Close()

	if d.FakeDataMode() {
		logger.Warn("capturing in fake data mode")
	}

	if err := d.RunSingleShot(); err != nil {
		return err
	}

	done, err := d.Ready()
	if err != nil {
		return err
	}
	logger.Debug("sampling done", zap.Bool("ready", done))

	time.Sleep(wait)
	if err := d.WaitReady(commandContext(cmd), 10*time.Millisecond); err != nil {
		return err
	}

	values, overflow, err := d.GetValues()
	if err != nil {
		return err
	}
	if overflow != 0 {
		logger.Warn("input overflow", zap.Uint16("mask", overflow))
	}

	fmt.Fprintf(out, "%d values\n", len(values))
	n := max(0, min(singleShotShow, len(values)))
	for _, v := range values[:n] {
		fmt.Fprintln(out, v)
	}

	return d.Stop()
}
