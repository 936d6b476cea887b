package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edgecore/quantedge/internal/config"
	"github.com/edgecore/quantedge/internal/confidence"
	"github.com/edgecore/quantedge/internal/discovery"
	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/learning"
	"github.com/edgecore/quantedge/internal/outcome"
	"github.com/edgecore/quantedge/internal/telemetry"
)

const appName = "quantedge"

func main() {
	telemetry.InitConsoleLogging(zerolog.InfoLevel)

	var configPath string
	var edgesPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Streaming feature, edge-discovery, and learning pipeline",
		Version: "v0.1.0",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/quantedge.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&edgesPath, "edges", "data/edges.json", "path to the serialized edge registry")

	configCmd := &cobra.Command{Use: "config", Short: "Configuration surface commands"}
	configValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config valid: %d enabled features, %d max edges per discovery run\n",
				len(cfg.FeatureRegistry.EnabledFeatures), cfg.Discovery.MaxEdgesPerRun)
			return nil
		},
	}
	configCmd.AddCommand(configValidateCmd)

	edgesCmd := &cobra.Command{Use: "edges", Short: "Edge registry inspection commands"}
	edgesShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the registry's aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(edgesPath)
			if err != nil {
				return err
			}
			stats := reg.GetStats()
			return printJSON(stats)
		},
	}
	edgesRetireCmd := &cobra.Command{
		Use:   "retire-sweep",
		Short: "Run the authoritative retirement sweep and persist the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(edgesPath)
			if err != nil {
				return err
			}
			retired := reg.RetireUnderperformingEdges()
			if err := edge.WriteFile(edgesPath, reg); err != nil {
				return fmt.Errorf("quantedge: persist registry: %w", err)
			}
			log.Info().Int("retired_count", len(retired)).Msg("retirement sweep complete")
			return printJSON(retired)
		},
	}
	edgesCmd.AddCommand(edgesShowCmd, edgesRetireCmd)

	learnCmd := &cobra.Command{Use: "learn", Short: "Learning scheduler commands"}
	learnDailyCmd := &cobra.Command{
		Use:   "daily",
		Short: "Run the daily confidence-update pass and persist the edge registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(edgesPath)
			if err != nil {
				return err
			}

			sched := newScheduler(cfg)
			edges := make(map[string]*edge.Edge)
			for _, e := range reg.All() {
				edges[e.ID] = e
			}

			rec := sched.RunDaily(edges)
			if err := edge.WriteFile(edgesPath, reg); err != nil {
				return fmt.Errorf("quantedge: persist registry: %w", err)
			}
			return printJSON(rec)
		},
	}
	learnCmd.AddCommand(learnDailyCmd)

	discoverCmd := &cobra.Command{Use: "discover", Short: "Edge discovery pipeline commands"}
	discoverRunCmd := &cobra.Command{
		Use:   "run",
		Short: "Scan recorded outcomes for significant patterns and register candidate edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(edgesPath)
			if err != nil {
				return err
			}

			outcomes, err := outcome.Read(cfg.Learning.Outcome.Dir, outcome.Filter{})
			if err != nil {
				return fmt.Errorf("quantedge: read outcomes: %w", err)
			}
			rows := make([]discovery.Row, len(outcomes))
			for i, o := range outcomes {
				rows[i] = discovery.Row{Features: o.EntryFeatures, Regime: o.EntryRegime, ForwardReturn: o.PnL}
			}

			res, err := discovery.Run(context.Background(), cfg.Discovery, rows, reg, nil)
			if err != nil {
				return err
			}
			if err := edge.WriteFile(edgesPath, reg); err != nil {
				return fmt.Errorf("quantedge: persist registry: %w", err)
			}
			log.Info().Int("registered", res.EdgeCandidatesRegistered).Msg("discovery run complete")
			return printJSON(res)
		},
	}
	discoverCmd.AddCommand(discoverRunCmd)

	rootCmd.AddCommand(configCmd, edgesCmd, learnCmd, discoverCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadRegistry(path string) (*edge.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quantedge: read edge file %s: %w", path, err)
	}
	reg, err := edge.LoadFile(data)
	if err != nil {
		return nil, fmt.Errorf("quantedge: parse edge file %s: %w", path, err)
	}
	return reg, nil
}

// newScheduler wires a learning.Scheduler from loaded config with only the
// confidence updater set; the revalidation runner, importance tracker and
// refinement engine are passed as nil. RunDaily never touches the
// revalidation runner, so this is sufficient for the "learn daily" command;
// weekly/monthly runs require a concrete validation.Pipeline, which is
// supplied by the embedding process rather than constructed here.
func newScheduler(cfg *config.Config) *learning.Scheduler {
	confUpdater := confidence.New(confidence.Config{
		MinSampleSize:              30,
		Alpha:                      cfg.Learning.Confidence.EMAAlpha,
		ConfidenceDropThreshold:    cfg.Learning.Confidence.DriftConfidenceDrop,
		ConsecutiveLossesThreshold: cfg.Learning.Confidence.DriftConsecutiveLosses,
		WinRateDropThreshold:       cfg.Learning.Confidence.DriftWinRateDrop,
	})

	learnCfg := learning.Config{
		OutcomeDir:             cfg.Learning.Outcome.Dir,
		EnableAutoRevalidation: cfg.Learning.Schedule.RunHistoryDepth > 0,
		HistoryDepth:           cfg.Learning.Schedule.RunHistoryDepth,
	}
	return learning.New(learnCfg, confUpdater, nil, nil, nil)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
