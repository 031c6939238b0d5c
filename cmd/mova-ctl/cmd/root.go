package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/service/client"
	"github.com/oshokin/mova-viewer/internal/version"
)

var (
	// clientOptions are shared by every subcommand.
	clientOptions client.Options
	// logLevel is the minimum level written to the log.
	logLevel string

	// Per-command flags.
	displayView   bool
	historyCount  int
	alertHistory  bool
	alertLimit    int
	stopRecording bool
	replaySpeed   string
	replayPause   bool
	replayResume  bool
	replayStep    bool
	watchInterval time.Duration

	errUnknownLogLevel = errors.New("unknown log level")
	errInvalidNumber   = errors.New("invalid number")
	errNothingToDo     = errors.New("nothing to do")

	// rootCmd represents the base command for querying the viewer daemon.
	rootCmd = &cobra.Command{
		Use:   "mova-ctl",
		Short: "Query and control a running mova-viewer daemon.",
		Long: `Connects to the mova-viewer gRPC API and prints snapshots, history and alerts,
or sends commands such as pin, reset and replay control.

The daemon address is read from the configuration file unless --addr is given.
State-changing commands are logged by the daemon with the user and host name.`,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
	}
)

// Execute runs the mova-ctl CLI and exits with non-zero status on error.
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

// withSession connects to the daemon, runs fn and closes the connection.
func withSession(fn func(ctx context.Context, s *client.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		session, err := client.Connect(ctx, &clientOptions, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		defer func() {
			_ = session.Close()
		}()

		return fn(ctx, session)
	}
}

// parseID parses a positive decimal argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w %q", errInvalidNumber, arg)
	}

	return id, nil
}

func newCommands() []*cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show source, pipeline and aggregation status.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Status(ctx)
		}),
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [sequence-id]",
		Short: "Show the live snapshot, the display view or a retained snapshot.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seq int64

			if len(args) > 0 {
				var err error
				if seq, err = parseID(args[0]); err != nil {
					return err
				}
			}

			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Snapshot(ctx, seq, displayView)
			})(cmd, args)
		},
	}
	snapshotCmd.Flags().BoolVar(&displayView, "display", false, "show the display view, honoring a pin")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List finalized snapshots, newest first.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.History(ctx, historyCount)
		}),
	}
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "number of snapshots; 0 lists all")

	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active alerts, or the alert history.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Alerts(ctx, alertHistory, alertLimit)
		}),
	}
	alertsCmd.Flags().BoolVar(&alertHistory, "history", false, "include cleared alerts")
	alertsCmd.Flags().IntVar(&alertLimit, "limit", 0, "history entries to show; 0 shows all")

	ackCmd := &cobra.Command{
		Use:   "ack <alert-id>",
		Short: "Acknowledge an alert.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Acknowledge(ctx, id)
			})(cmd, args)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear-alerts",
		Short: "Clear every active alert.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.ClearAlerts(ctx)
		}),
	}

	pinCmd := &cobra.Command{
		Use:   "pin [sequence-id]",
		Short: "Freeze the display view on a snapshot, the live one by default.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seq int64

			if len(args) > 0 {
				var err error
				if seq, err = parseID(args[0]); err != nil {
					return err
				}
			}

			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Pin(ctx, seq)
			})(cmd, args)
		},
	}

	unpinCmd := &cobra.Command{
		Use:   "unpin",
		Short: "Make the display view follow the live snapshot.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Unpin(ctx)
		}),
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop snapshots, history, queues and alerts.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Reset(ctx)
		}),
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Drain and print the queued display events.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Events(ctx)
		}),
	}

	rawCmd := &cobra.Command{
		Use:   "raw",
		Short: "Drain and print the queued raw lines.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.RawLines(ctx)
		}),
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print new events until interrupted.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			return s.Watch(ctx, watchInterval)
		}),
	}
	watchCmd.Flags().DurationVar(&watchInterval, "interval", client.DefaultWatchInterval, "polling interval")

	recordCmd := &cobra.Command{
		Use:   "record [path]",
		Short: "Start recording on the daemon host, or stop with --stop.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string

			switch {
			case stopRecording:
			case len(args) == 1:
				path = args[0]
			default:
				return fmt.Errorf("%w: give a path or --stop", errNothingToDo)
			}

			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Record(ctx, path)
			})(cmd, args)
		},
	}
	recordCmd.Flags().BoolVar(&stopRecording, "stop", false, "stop the active recording")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Change replay speed, pause, resume or step one line.",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *client.Session) error {
			control := mova.ReplayControl{Speed: replaySpeed, Step: replayStep}

			switch {
			case replayPause:
				control.Paused = new(bool)
				*control.Paused = true
			case replayResume:
				control.Paused = new(bool)
			}

			if control.Speed == "" && control.Paused == nil && !control.Step {
				return fmt.Errorf("%w: give --speed, --pause, --resume or --step", errNothingToDo)
			}

			return s.Replay(ctx, control)
		}),
	}
	replayCmd.Flags().StringVar(&replaySpeed, "speed", "", "realtime, fast50, fast200, fast500, instant or step")
	replayCmd.Flags().BoolVar(&replayPause, "pause", false, "pause the replay")
	replayCmd.Flags().BoolVar(&replayResume, "resume", false, "resume the replay")
	replayCmd.Flags().BoolVar(&replayStep, "step", false, "emit one line")
	replayCmd.MarkFlagsMutuallyExclusive("pause", "resume")

	return []*cobra.Command{
		statusCmd, snapshotCmd, historyCmd, alertsCmd, ackCmd, clearCmd, pinCmd, unpinCmd,
		resetCmd, eventsCmd, rawCmd, watchCmd, recordCmd, replayCmd,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&clientOptions.ConfigPath, "config", "c", "", "path to configuration file (default mova-viewer.yaml)")
	flags.StringVarP(&clientOptions.ServerAddress, "addr", "a", "", "daemon gRPC address (default grpc_addr from config)")
	flags.DurationVar(&clientOptions.Timeout, "timeout", 0, "per-call timeout (default timeout from config)")
	flags.BoolVar(&clientOptions.NoColor, "no-color", false, "disable colors")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newCommands()...)
}
