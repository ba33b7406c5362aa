package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/config"
	"github.com/newthinker/macrocredit/internal/logger"
	"github.com/newthinker/macrocredit/internal/metrics"
	"github.com/newthinker/macrocredit/internal/pipeline"
	"github.com/newthinker/macrocredit/internal/storage/archive"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "macrocredit",
	Short: "Credit overlay research pipeline",
	Long: `macrocredit turns CDX, VIX and credit ETF data into a composite
positioning signal, backtests a binary long/short CDX overlay against it and
reports risk-adjusted performance.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Registry
	store   archive.Storage
}

// loadConfig reads the config file, or defaults when none is given
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setup builds logger, storage and metrics from a validated config
func setup(cfg *config.Config) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithLevel(level, debug || cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}

	store, err := archive.New(cfg.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	e := &env{cfg: cfg, log: log, store: store}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.NewRegistry()
	}
	return e, nil
}

func (e *env) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(e.cfg, e.store, e.metrics, e.log)
}

// flushMetrics writes the textfile when one is configured
func (e *env) flushMetrics() {
	if e.metrics == nil || e.cfg.Metrics.Textfile == "" {
		return
	}
	if err := e.metrics.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
		e.log.Warn("failed to write metrics", zap.Error(err))
		return
	}
	e.log.Debug("metrics written", zap.String("path", e.cfg.Metrics.Textfile))
}
