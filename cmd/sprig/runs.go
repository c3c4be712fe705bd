package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/sprig/internal/storage"
)

var (
	runsInput  string
	runsFailed bool
	runsOK     bool
	runsSince  time.Duration
	runsLimit  int
	runsOffset int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived research runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := queryRuns(cmd, storage.Filter{Limit: runsLimit, Offset: runsOffset})
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			top := ""
			if len(r.Keywords) > 0 {
				top = r.Keywords[0].Keyword
			}
			rows = append(rows, []string{
				r.ID,
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.Input,
				string(r.Kind),
				r.Seed,
				strconv.Itoa(len(r.Keywords)),
				top,
				r.Error,
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"id", "created", "input", "kind", "seed", "keywords", "top", "error"}, rows)
	},
}

func init() {
	addRunFilterFlags(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 = all)")
	runsCmd.Flags().IntVar(&runsOffset, "offset", 0, "skip this many runs")
}

// addRunFilterFlags registers the flags shared by runs and report.
func addRunFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runsInput, "input", "", "only runs for this exact input")
	cmd.Flags().BoolVar(&runsFailed, "failed", false, "only failed runs")
	cmd.Flags().BoolVar(&runsOK, "ok", false, "only successful runs")
	cmd.Flags().DurationVar(&runsSince, "since", 0, "only runs newer than this, e.g. 24h")
	cmd.MarkFlagsMutuallyExclusive("failed", "ok")
}

// queryRuns opens the archive and applies the shared filter flags to f.
func queryRuns(cmd *cobra.Command, f storage.Filter) ([]*storage.Run, error) {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("run archive is disabled (storage.backend: none)")
	}
	defer store.Close()

	f.Input = runsInput
	switch {
	case runsFailed:
		f.Failed = &runsFailed
	case runsOK:
		failed := false
		f.Failed = &failed
	}
	if runsSince > 0 {
		since := time.Now().Add(-runsSince).UTC()
		f.Since = &since
	}

	runs, err := store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}
