package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/internal/audio"
	"github.com/calmacil/vitalsim/internal/config"
	"github.com/calmacil/vitalsim/internal/engine"
	"github.com/calmacil/vitalsim/internal/metrics"
	"github.com/calmacil/vitalsim/internal/observability"
	"github.com/calmacil/vitalsim/internal/persistence"
	"github.com/calmacil/vitalsim/internal/replication"
	"github.com/calmacil/vitalsim/internal/scenario"
	"github.com/calmacil/vitalsim/internal/session"
	"github.com/calmacil/vitalsim/internal/store"
)

// newRunCmd creates and configures the `run` command: the controller role,
// hosting the simulation and the instructor console.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a training session as the controlling instructor",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line flags override
			// values from the config file and environment variables.
			if err := viper.BindPFlag("engine.seed", cmd.Flags().Lookup("seed")); err != nil {
				return err
			}
			if err := viper.BindPFlag("replication.spool_dir", cmd.Flags().Lookup("spool")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			scenarioPath := viper.GetString("scenario")
			sessionCode := viper.GetString("session")
			restore := viper.GetBool("restore")
			if sessionCode == "" {
				// Short random code, easy to read out to the monitor side.
				sessionCode = uuid.New().String()[:8]
			}
			if scenarioPath == "" && !restore {
				return fmt.Errorf("a scenario file is required (--scenario) unless restoring")
			}

			components, err := initializeRunComponents(cfg, sessionCode, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			runner := components.Runner
			if restore {
				if err := runner.Restore(ctx); err != nil {
					if errors.Is(err, persistence.ErrNoSnapshot) {
						return fmt.Errorf("no saved session %q to restore", sessionCode)
					}
					return err
				}
			} else {
				sc, err := scenario.Load(scenarioPath)
				if err != nil {
					return err
				}
				runner.Engine().LoadScenario(sc)
			}

			logger.Info("Session ready",
				zap.String("session", sessionCode),
				zap.Bool("restored", restore))
			fmt.Printf("Session code: %s\n", sessionCode)

			// Console gets its own cancel so 'exit' tears the session down.
			consoleCtx, cancelConsole := context.WithCancel(ctx)
			defer cancelConsole()

			console := session.NewConsole(runner, os.Stdin, os.Stdout)
			go func() {
				defer cancelConsole()
				if err := console.Run(consoleCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("Console stopped", zap.Error(err))
				}
			}()

			return runner.Run(consoleCtx)
		},
	}

	runCmd.Flags().StringP("scenario", "s", "", "Path to the scenario YAML file.")
	runCmd.Flags().String("session", "", "Session code monitors join with. Random when unset.")
	runCmd.Flags().String("catalog", "", "Optional YAML file overriding the intervention catalog.")
	runCmd.Flags().Int64("seed", 0, "Random seed; zero seeds from the wall clock. (Overrides config/env)")
	runCmd.Flags().Bool("restore", false, "Restore the session from its last checkpoint.")
	runCmd.Flags().String("spool", "", "Spool directory for cross-process replication. (Overrides config/env)")

	return runCmd
}

// runComponents holds initialized services for the controller role.
type runComponents struct {
	Runner    *session.Runner
	Snapshots *persistence.SnapshotStore
	Channel   replication.Channel
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown() {
	if closer, ok := rc.Channel.(interface{ Shutdown() }); ok && rc.Channel != nil {
		closer.Shutdown()
	}
	if rc.Snapshots != nil {
		if err := rc.Snapshots.Close(); err != nil {
			observability.GetLogger().Warn("Error closing snapshot store", zap.Error(err))
		}
	}
}

// initializeRunComponents handles dependency injection for the controller.
func initializeRunComponents(cfg *config.Config, sessionCode string, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Intervention catalog
	catalog := scenario.DefaultCatalog()
	if path := viper.GetString("catalog"); path != "" {
		loaded, err := scenario.LoadCatalog(path)
		if err != nil {
			return components, fmt.Errorf("failed to load intervention catalog: %w", err)
		}
		catalog = loaded
	}

	// 2. Store and metrics
	st := store.New(logger)
	var collector *metrics.Collector
	if cfg.Metrics().Enabled {
		collector = metrics.NewCollector(nil)
		st.SetObserver(collector)
	}

	// 3. Engine
	engineOpts := []engine.Option{}
	if collector != nil {
		engineOpts = append(engineOpts, engine.WithCollector(collector))
	}
	eng := engine.New(st, catalog, cfg.Engine(), logger, engineOpts...)

	// 4. Session runner
	runner, err := session.New(sessionCode, cfg, st, eng, logger)
	if err != nil {
		return components, err
	}
	components.Runner = runner
	if collector != nil {
		runner.SetCollector(collector)
	}

	// 5. Replication channel and broadcaster
	channel, err := newChannel(cfg, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize replication channel: %w", err)
	}
	components.Channel = channel
	runner.SetBroadcaster(replication.NewBroadcaster(sessionCode, channel, st, logger, collectorOrNil(collector)))

	// 6. Persistence
	snapshots, err := persistence.Open(cfg.Persistence().Path)
	if err != nil {
		return components, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	components.Snapshots = snapshots
	runner.SetSnapshots(snapshots)

	// 7. Audio
	if cfg.Audio().Enabled {
		beeper := audio.NewScheduler(st, audio.NewTerminalOutput(os.Stdout), cfg.Audio().MinCadenceHR, logger)
		beeper.SetMuted(cfg.Audio().Muted)
		runner.SetAudio(beeper)
	}

	return components, nil
}

// newChannel picks the replication transport: file-backed when a spool
// directory is configured, in-process otherwise.
func newChannel(cfg *config.Config, logger *zap.Logger) (replication.Channel, error) {
	if dir := cfg.Replication().SpoolDir; dir != "" {
		return replication.NewFileChannel(dir, cfg.Replication().PollInterval, logger)
	}
	return replication.NewMemoryChannel(logger, cfg.Replication().BufferSize), nil
}

// collectorOrNil avoids handing a typed-nil interface to the broadcaster.
func collectorOrNil(c *metrics.Collector) replication.PublishCounter {
	if c == nil {
		return nil
	}
	return c
}
