package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pqpico/picodaq/internal/catalog"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(cfg.Storage.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	sessions, err := cat.Sessions(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRATE\tBLOCKS\tSIZE\tFOLDER")
	for _, s := range sessions {
		rate := s.Rate + "S"
		if s.Fake {
			rate += " (fake)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(s.Started),
			rate,
			humanize.Comma(int64(s.Blocks)),
			humanize.IBytes(uint64(s.Samples)*2),
			s.Dir)
	}
	return w.Flush()
}
