package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/sprig/internal/analyzer"
	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/research"
	"github.com/FranksOps/sprig/internal/storage"
)

var (
	researchRank    string
	researchFormat  string
	researchNoStore bool
	researchCover   bool
)

var researchCmd = &cobra.Command{
	Use:   "research <input>",
	Short: "Research keywords for a product title, product URL or topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input := strings.Join(args, " ")

		svc, err := newService(researchRank)
		if err != nil {
			return err
		}

		var store storage.Backend
		if !researchNoStore {
			if store, err = openStore(ctx); err != nil {
				return err
			}
		}
		if store != nil {
			defer store.Close()
		}

		res, err := svc.Research(ctx, input)
		archive(ctx, store, input, res, err)
		if err != nil {
			return err
		}
		if err := writeKeywords(cmd.OutOrStdout(), researchFormat, res.Keywords); err != nil {
			return err
		}
		if !researchCover {
			return nil
		}
		if res.Seed.Kind != keyword.KindURL {
			logger.Warn("coverage needs a product URL input", "kind", res.Seed.Kind)
			return nil
		}
		return writeCoverage(ctx, cmd.OutOrStdout(), res.Seed.Input, res.Keywords)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchRank, "rank", "", "ranking: volume or content (default from config)")
	researchCmd.Flags().StringVarP(&researchFormat, "format", "f", "table", "output format: table, json, or csv")
	researchCmd.Flags().BoolVar(&researchNoStore, "no-store", false, "do not archive the run")
	researchCmd.Flags().BoolVar(&researchCover, "coverage", false, "check which keywords already appear on the product page")
}

// writeCoverage fetches the product page and reports how often each
// researched keyword appears in its visible text.
func writeCoverage(ctx context.Context, w io.Writer, pageURL string, records []keyword.Record) error {
	pool, err := proxyPool()
	if err != nil {
		return err
	}
	fetcher, err := newFetcher(pool)
	if err != nil {
		return err
	}
	page, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}
	switch {
	case page.Challenged:
		return fmt.Errorf("fetching page: blocked by %s", page.ChallengeSource)
	case !page.OK():
		return fmt.Errorf("fetching page: status %d", page.StatusCode)
	}
	text, err := analyzer.PageText(page.Body)
	if err != nil {
		return err
	}

	phrases := make([]string, len(records))
	for i, r := range records {
		phrases[i] = r.Keyword
	}
	matches := analyzer.Coverage(text, phrases)

	rows := make([][]string, 0, len(matches))
	missing := 0
	for _, m := range matches {
		example := ""
		if m.Found() {
			example = m.Sentences[0]
		} else {
			missing++
		}
		rows = append(rows, []string{m.Keyword, strconv.Itoa(m.Count), example})
	}
	fmt.Fprintf(w, "\nOn-page coverage (%d of %d keywords missing)\n", missing, len(matches))
	return renderTable(w, []string{"keyword", "on page", "example"}, rows)
}

// archive saves a run when a store is configured. Archive failures are
// logged, never returned, so they cannot mask the research outcome.
func archive(ctx context.Context, store storage.Backend, input string, res *research.Result, err error) {
	if store == nil {
		return
	}
	run := storage.NewRun(input, res, err)
	if saveErr := store.Save(ctx, run); saveErr != nil {
		logger.Warn("failed to archive run", "input", input, "err", saveErr)
		return
	}
	logger.Debug("run archived", "id", run.ID, "input", input)
}
