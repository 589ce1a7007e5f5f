package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pqpico/picodaq"
	"github.com/pqpico/picodaq/internal/catalog"
	"github.com/pqpico/picodaq/internal/session"
)

var (
	streamPolls    int
	streamDuration time.Duration
	streamLinger   time.Duration
	streamComplex  bool
	streamSettle   time.Duration
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream from the oscilloscope",
	Long: `Opens the oscilloscope, starts streaming and creates a session folder.

Without --duration it polls the driver --polls times and prints the length of
each block taken off the queue. With --duration every block is written to the
session folder and catalogued until the duration ends or the process is
interrupted.`,
	RunE: runStream,
}

func init() {
	streamCmd.Flags().IntVar(&streamPolls, "polls", -1, "Number of polls (default from parameters)")
	streamCmd.Flags().DurationVarP(&streamDuration, "duration", "d", 0, "Record to disk for this long")
	streamCmd.Flags().DurationVar(&streamLinger, "linger", 500*time.Millisecond, "Time to keep streaming after the last poll")
	streamCmd.Flags().BoolVar(&streamComplex, "complex", false, "Also write volts as complex64 next to each block")
	streamCmd.Flags().DurationVar(&streamSettle, "settle", 200*time.Millisecond, "Time to let the unit settle after setup")
}

func openScope() (*picodaq.Scope, error) {
	return picodaq.OpenScope(scopeDriver(),
		picodaq.WithLogger(logger.Named("scope")),
		picodaq.WithStreaming(cfg.StreamingParams()),
		picodaq.WithChannel(cfg.ChannelParams()),
		picodaq.WithTimebase(cfg.TimebaseParams()),
		picodaq.WithSettleTime(streamSettle),
	)
}

// createSession makes the session folder for the interval the driver
// actually applied and stores the parameters in it.
func createSession(scope *picodaq.Scope, now time.Time) (*session.Session, error) {
	interval, unit := scope.SampleInterval()
	rate, err := session.SampleRateString(interval, unit)
	if err != nil {
		return nil, err
	}

	sess, err := session.Create(cfg.Storage.DataDir, now, rate, cfg.Path())
	if err != nil {
		return nil, err
	}
	if cfg.Path() == "" {
		// running on defaults, store what was used
		if err := cfg.Save(filepath.Join(sess.Dir, "parameters.yaml")); err != nil {
			return nil, err
		}
	}
	logger.Info("data will be saved", zap.String("folder", sess.Dir))
	return sess, nil
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pollInterval, err := cfg.PollInterval()
	if err != nil {
		return err
	}

	scope, err := openScope()
	if err != nil {
		return fmt.Errorf("failed to open picoscope: %w", err)
	}
	defer scope.Close()

	if scope.FakeDataMode() {
		logger.Warn("streaming in fake data mode")
	}

	p := cfg.StreamingParams()
	interval, err := scope.RunStreaming(p.DownSampleRatio, p.RatioMode)
	if err != nil {
		return err
	}
	logger.Debug("streaming started", zap.Uint32("sample_interval", interval), zap.Stringer("unit", p.Unit))

	sess, err := createSession(scope, time.Now())
	if err != nil {
		scope.Stop()
		return err
	}

	out := cmd.OutOrStdout()

	if streamDuration > 0 {
		err = record(ctx, scope, sess, pollInterval)
	} else {
		err = poll(ctx, scope, pollInterval, out)
	}
	if err != nil {
		scope.Stop()
		return err
	}
	return scope.Stop()
}

func poll(ctx context.Context, scope *picodaq.Scope, interval time.Duration, out io.Writer) error {
	polls := streamPolls
	if polls < 0 {
		polls = cfg.Streaming.Polls
	}

	for i := 0; i < polls; i++ {
		if err := sleepCtx(ctx, interval); err != nil {
			return nil
		}
		data, err := scope.GetQueueData()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, len(data))
	}
	_ = sleepCtx(ctx, streamLinger)
	return nil
}

func record(ctx context.Context, scope *picodaq.Scope, sess *session.Session, interval time.Duration) error {
	cat, err := catalog.Open(cfg.Storage.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	err = cat.AddSession(ctx, catalog.Session{
		ID:      sess.ID,
		Dir:     sess.Dir,
		Rate:    sess.Rate,
		Fake:    scope.FakeDataMode(),
		Started: sess.Started,
	})
	if err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, streamDuration)
	defer cancel()

	rec := &session.Recorder{
		Scope:         scope,
		Session:       sess,
		Index:         cat,
		PollInterval:  interval,
		ExportComplex: streamComplex,
		Log:           logger.Named("recorder"),
	}
	_, err = rec.Run(rctx)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
