// Package cli implements the ofml command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/config"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/engine"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/storage/overrides"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/storage/snapshot"
)

var (
	// Global flags
	configFile string
	dataRoot   string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ofml",
	Short: "OCD price engine for OFML furniture data",
	Long: `ofml reads OFML/OCD commercial data repositories and computes configurable
product prices: base price, variant-condition surcharges and discounts,
across heterogeneous manufacturer data sets.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "OFML data root (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// appContext bundles everything a subcommand needs, with the open stores for
// deferred cleanup.
type appContext struct {
	cfg    *config.Config
	log    *zap.Logger
	engine *engine.Engine

	snapshots *snapshot.Store
	overrides *overrides.Store
}

func (a *appContext) close() {
	if a.snapshots != nil {
		a.snapshots.Close()
	}
	if a.overrides != nil {
		a.overrides.Close()
	}
	_ = a.log.Sync()
}

// setup loads config and wires the engine for a subcommand run.
func setup() (*appContext, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dataRoot != "" {
		cfg.DataRoot = dataRoot
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := cfg.BuildLogger()
	if err != nil {
		return nil, err
	}

	app := &appContext{cfg: cfg, log: log}

	opts := engine.Options{
		DataRoot:  cfg.DataRoot,
		Languages: cfg.Languages,
		CacheTTL:  cfg.Cache.TTL,
		CacheSize: cfg.Cache.MaxModels,
		Logger:    log,
	}
	if cfg.Snapshot.Enabled {
		store, err := snapshot.Open(cfg.Snapshot.Path, log)
		if err != nil {
			log.Warn("snapshot store unavailable", zap.Error(err))
		} else {
			app.snapshots = store
			opts.Snapshots = store
		}
	}
	if cfg.Overrides.Path != "" {
		store, err := overrides.Open(cfg.Overrides.Path)
		if err != nil {
			log.Warn("override store unavailable", zap.Error(err))
		} else {
			app.overrides = store
			opts.Overrides = store
		}
	}

	app.engine = engine.New(opts)
	return app, nil
}

// loadSeries resolves a series or returns a friendly error.
func (a *appContext) loadSeries(manufacturer, series string) (*ocd.Model, error) {
	model, err := a.engine.LoadSeries(manufacturer, series)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("series %s/%s: no pdata.ebase found under %s",
			manufacturer, series, a.cfg.DataRoot)
	}
	return model, nil
}
