package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FranksOps/sprig/internal/config"
	"github.com/FranksOps/sprig/internal/metrics"
)

var (
	cfgFile       string
	verbose       bool
	metricsPort   int
	cfg           *config.Config
	logger        *slog.Logger
	metricsServer *metrics.Server
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sprig",
	Short: "Keyword research for product pages and topics",
	Long: `sprig turns a product title, a product page URL or a topic into a ranked
list of SEO keywords with search volume, CPC, competition, intent and a
12 month trend, using a DataForSEO-compatible keyword data API.

Example usage:
  sprig seed "Lodge Cast Iron Skillet 12in"        # Show the seed and variations offline
  sprig research "water softener"                  # Research and archive one input
  sprig research https://shop.example.com/products/cast-iron-skillet --format json
  sprig batch --sitemap https://shop.example.com/sitemap.xml --match /products/
  sprig runs --failed                              # List archived failures
  sprig report --format html > report.html`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := metricsServer.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("stopping metrics server: %w", err)
		}
		metricsServer = nil
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sprig.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "expose Prometheus metrics on this port (0 uses the config value)")

	rootCmd.AddCommand(seedCmd, researchCmd, batchCmd, runsCmd, reportCmd)
}

// initConfig loads configuration and sets up logging and metrics.
func initConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger = newLogger(cmd.ErrOrStderr(), cfg.Logging, verbose)
	slog.SetDefault(logger)

	if metricsPort > 0 {
		cfg.Metrics.Port = metricsPort
	}
	if cfg.Metrics.Port > 0 {
		metricsServer = metrics.Start(cfg.Metrics.Port)
		logger.Debug("metrics server started", "port", cfg.Metrics.Port)
	}

	logger.Debug("configuration loaded",
		"base_url", cfg.Provider.BaseURL,
		"storage", cfg.Storage.Backend,
		"rank", cfg.Research.Rank,
	)
	return nil
}

func newLogger(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
