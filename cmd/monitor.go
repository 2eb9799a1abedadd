package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/internal/audio"
	"github.com/calmacil/vitalsim/internal/config"
	"github.com/calmacil/vitalsim/internal/engine"
	"github.com/calmacil/vitalsim/internal/observability"
	"github.com/calmacil/vitalsim/internal/replication"
	"github.com/calmacil/vitalsim/internal/scenario"
	"github.com/calmacil/vitalsim/internal/session"
	"github.com/calmacil/vitalsim/internal/store"
)

// newMonitorCmd creates the `monitor` command: the follower role, mirroring
// a controller's session over the replication channel.
func newMonitorCmd() *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor <session-code>",
		Short: "Follows a running session as a bedside monitor display",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
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
			sessionCode := args[0]
			if cfg.Replication().SpoolDir == "" {
				return fmt.Errorf("a spool directory is required to follow another process (--spool)")
			}

			channel, err := replication.NewFileChannel(cfg.Replication().SpoolDir, cfg.Replication().PollInterval, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize replication channel: %w", err)
			}
			defer channel.Shutdown()

			st := store.New(logger)
			eng := engine.New(st, scenario.DefaultCatalog(), cfg.Engine(), logger, engine.Passive())

			runner, err := session.New(sessionCode, cfg, st, eng, logger)
			if err != nil {
				return err
			}
			runner.SetMonitor(replication.NewMonitor(sessionCode, channel, st, logger))

			if cfg.Audio().Enabled {
				beeper := audio.NewScheduler(st, audio.NewTerminalOutput(os.Stdout), cfg.Audio().MinCadenceHR, logger)
				beeper.SetMuted(cfg.Audio().Muted)
				runner.SetAudio(beeper)
			}

			logger.Info("Following session", zap.String("session", sessionCode))
			fmt.Printf("Mirroring session %s. Ctrl-C to stop.\n", sessionCode)
			return runner.Run(ctx)
		},
	}

	monitorCmd.Flags().String("spool", "", "Spool directory shared with the controller. (Overrides config/env)")

	return monitorCmd
}
