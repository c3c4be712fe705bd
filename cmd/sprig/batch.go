package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/sprig/internal/scraper"
	"github.com/FranksOps/sprig/internal/storage"
)

var (
	batchSitemap     string
	batchCrawl       string
	batchFile        string
	batchMatch       string
	batchLimit       int
	batchConcurrency int
	batchRank        string
	batchNoStore     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Research every product in a sitemap, a crawled storefront or a file",
	Long: `batch discovers inputs and researches each one with bounded concurrency.
Every run is archived; a failing input is recorded and the batch moves on.

Inputs come from exactly one of:
  --sitemap URL   product URLs from a sitemap or sitemap index
  --crawl URL     product links found by crawling a storefront's listing pages
  --file PATH     one input per line ('#' starts a comment)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inputs, err := batchInputs(ctx)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.New("no inputs found")
		}
		logger.Info("batch starting", "inputs", len(inputs))

		svc, err := newService(batchRank)
		if err != nil {
			return err
		}

		var store storage.Backend
		if !batchNoStore {
			if store, err = openStore(ctx); err != nil {
				return err
			}
		}
		if store != nil {
			defer store.Close()
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Research.Concurrency
		}

		rows := make([][]string, len(inputs))
		var mu sync.Mutex
		failed := 0

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, input := range inputs {
			g.Go(func() error {
				res, err := svc.Research(gCtx, input)
				archive(gCtx, store, input, res, err)

				row := []string{input, "", "0", "", ""}
				if err != nil {
					// Cancellation stops the batch; anything else is per-input.
					if gCtx.Err() != nil {
						return gCtx.Err()
					}
					logger.Warn("research failed", "input", input, "err", err)
					row[4] = err.Error()
					mu.Lock()
					failed++
					mu.Unlock()
				} else {
					row[1] = res.Seed.Phrase
					row[2] = strconv.Itoa(len(res.Keywords))
					row[3] = res.Keywords[0].Keyword
				}
				rows[i] = row
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := renderTable(cmd.OutOrStdout(), []string{"input", "seed", "keywords", "top", "error"}, rows); err != nil {
			return err
		}
		logger.Info("batch complete", "inputs", len(inputs), "failed", failed)
		if failed == len(inputs) {
			return fmt.Errorf("all %d inputs failed", failed)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSitemap, "sitemap", "", "sitemap or sitemap index URL")
	batchCmd.Flags().StringVar(&batchCrawl, "crawl", "", "storefront URL to crawl for product links")
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one input per line")
	batchCmd.Flags().StringVar(&batchMatch, "match", "/products/", "substring identifying product URLs")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "stop after this many inputs (0 = all)")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "concurrent research runs (default from config)")
	batchCmd.Flags().StringVar(&batchRank, "rank", "", "ranking: volume or content (default from config)")
	batchCmd.Flags().BoolVar(&batchNoStore, "no-store", false, "do not archive runs")
	batchCmd.MarkFlagsMutuallyExclusive("sitemap", "crawl", "file")
	batchCmd.MarkFlagsOneRequired("sitemap", "crawl", "file")
}

// batchInputs collects inputs from whichever source flag was given.
func batchInputs(ctx context.Context) ([]string, error) {
	if batchFile != "" {
		return readInputs(batchFile, batchLimit)
	}

	pool, err := proxyPool()
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher(pool)
	if err != nil {
		return nil, err
	}

	if batchSitemap != "" {
		sf := scraper.NewSitemapFetcher(fetcher, logger)
		urls, err := sf.ProductURLs(ctx, batchSitemap, scraper.URLFilter{Match: batchMatch, Limit: batchLimit})
		if err != nil {
			return nil, fmt.Errorf("reading sitemap: %w", err)
		}
		return urls, nil
	}

	crawler := scraper.NewCrawler(scraper.CrawlConfig{
		MaxDepth:      cfg.Scraper.CrawlDepth,
		Match:         batchMatch,
		Limit:         batchLimit,
		RespectRobots: cfg.Scraper.RespectRobots,
		UserAgent:     "sprig",
	}, fetcher, logger)
	urls, err := crawler.Discover(ctx, []string{batchCrawl})
	if err != nil {
		return nil, fmt.Errorf("crawling storefront: %w", err)
	}
	return urls, nil
}

// readInputs reads one input per line, skipping blanks, comments and
// duplicates.
func readInputs(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening inputs: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var inputs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		inputs = append(inputs, line)
		if limit > 0 && len(inputs) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading inputs: %w", err)
	}
	return inputs, nil
}
