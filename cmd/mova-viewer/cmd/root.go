package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/service/viewer"
	"github.com/oshokin/mova-viewer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the log.
	logLevel string
	// daemonOptions collects flag overrides for the daemon.
	daemonOptions viewer.Options
	// summaryHistory is the number of snapshots printed by summarize.
	summaryHistory int
	// archivePath overrides archive.path for the archive subcommand.
	archivePath string
	// noColor disables colored output of the offline subcommands.
	noColor bool

	errUnknownLogLevel = errors.New("unknown log level")
	errInvalidSequence = errors.New("invalid sequence id")

	// rootCmd represents the base command for running the viewer daemon.
	rootCmd = &cobra.Command{
		Use:   "mova-viewer [replay-file]",
		Short: "Ingest MOVA control text and serve live snapshots and alerts.",
		Long: `Starts the viewer daemon that reads MOVA control text, folds it into per-stage
snapshots, evaluates the alert rules and serves the result over gRPC and HTTP.

Text comes from a recording replayed at a chosen speed or from a control file
polled while the owning program runs. A replay file given as argument selects
replay mode and overrides the configuration file.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: applyLogLevel,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if len(args) > 0 {
				daemonOptions.ReplayFile = args[0]
			}

			daemonOptions.ConfigPath = configPath

			return viewer.Run(ctx, &daemonOptions)
		},
	}

	// summarizeCmd replays a recording offline and prints the result.
	summarizeCmd = &cobra.Command{
		Use:   "summarize <replay-file>",
		Short: "Replay a recording instantly and print snapshots and alerts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return viewer.Summarize(ctx, &viewer.SummarizeOptions{
				ConfigPath: configPath,
				ReplayFile: args[0],
				History:    summaryHistory,
				NoColor:    noColor,
			}, cmd.OutOrStdout())
		},
	}

	// archiveCmd browses the snapshot archive without a running daemon.
	archiveCmd = &cobra.Command{
		Use:   "archive [session-id [sequence-id]]",
		Short: "List archived sessions, the snapshots of a session, or one snapshot.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &viewer.ArchiveOptions{
				ConfigPath: configPath,
				Path:       archivePath,
				NoColor:    noColor,
			}

			if len(args) > 0 {
				opts.SessionID = args[0]
			}

			if len(args) > 1 {
				seq, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || seq <= 0 {
					return fmt.Errorf("%w %q", errInvalidSequence, args[1])
				}

				opts.SequenceID = seq
			}

			return viewer.BrowseArchive(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
)

// Execute runs the mova-viewer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel sets the global log level from the --log-level flag.
func applyLogLevel(*cobra.Command, []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("%w %q", errUnknownLogLevel, logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default mova-viewer.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	flags := rootCmd.Flags()
	flags.StringVar(&daemonOptions.SourceMode, "source", "", "text source: replay or poll")
	flags.StringVar(&daemonOptions.Speed, "speed", "", "replay speed: realtime, fast50, fast200, fast500, instant or step")
	flags.StringVar(&daemonOptions.PollFile, "poll-file", "", "control file polled in poll mode")
	flags.StringVar(&daemonOptions.RecordPath, "record", "", "record every line to this file; .lz4 compresses")
	flags.StringVar(&daemonOptions.GRPCAddress, "grpc-addr", "", "gRPC listen address")
	flags.StringVar(&daemonOptions.HTTPAddress, "http-addr", "", "HTTP listen address for the JSON API and /metrics")

	summarizeCmd.Flags().IntVarP(&summaryHistory, "history", "n", viewer.DefaultSummaryHistory, "snapshots to print")
	summarizeCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors")

	archiveCmd.Flags().StringVar(&archivePath, "db", "", "archive database (default archive.path from config)")
	archiveCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors")

	rootCmd.AddCommand(summarizeCmd, archiveCmd)
}
