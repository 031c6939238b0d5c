package viewer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/mova-viewer/internal/api/grpc/viewer"
	"github.com/oshokin/mova-viewer/internal/api/rest"
	"github.com/oshokin/mova-viewer/internal/config"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/notify"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
	"github.com/oshokin/mova-viewer/internal/service/aggregator"
	"github.com/oshokin/mova-viewer/internal/service/alerting"
	"github.com/oshokin/mova-viewer/internal/service/pipeline"
	"github.com/oshokin/mova-viewer/internal/version"
)

// Options controls the mova-viewer daemon. Non-empty fields override the
// configuration file.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// SourceMode overrides source.mode.
	SourceMode string
	// ReplayFile overrides source.replay_file.
	ReplayFile string
	// Speed overrides source.speed.
	Speed string
	// PollFile overrides source.poll_file.
	PollFile string
	// RecordPath overrides recording.path.
	RecordPath string
	// GRPCAddress overrides grpc_addr.
	GRPCAddress string
	// HTTPAddress overrides http_addr.
	HTTPAddress string
}

const (
	// readHeaderTimeout bounds slow HTTP clients.
	readHeaderTimeout = 5 * time.Second
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
)

// errArchiveBacklog is counted when the archive writer cannot keep up.
var errArchiveBacklog = errors.New("archive backlog full")

// Run starts ingestion and the query servers, and blocks until ctx is
// cancelled or a server fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "mova-viewer")

	// Load configuration and apply command line overrides.
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	// One session id per run keys the archive and alert notifications.
	sessionID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}

	ctx = logger.WithKV(ctx, "session", sessionID.String())
	collector := metrics.New()

	// Alert engine with metrics and optional NATS fan-out.
	engine := alerting.NewEngine(settings.Alerts.Rules())
	engine.OnRaised(collector.AlertRaised)
	engine.OnCleared(collector.AlertCleared)

	if settings.Notify.NATSURL != "" {
		conn, connErr := notify.Connect(ctx, settings.Notify.NATSURL)
		if connErr != nil {
			// Alerts stay visible through the APIs; publishing is best effort.
			logger.WarnKV(ctx, "Alert publishing disabled", "error", connErr)
		} else {
			defer func() {
				if closeErr := notify.Close(conn); closeErr != nil {
					logger.WarnKV(ctx, "Close NATS connection failed", "error", closeErr)
				}
			}()

			notifier := notify.New(ctx, notify.Options{
				Publisher: conn,
				Subject:   settings.Notify.Subject,
				SessionID: sessionID.String(),
				Metrics:   collector,
			})
			engine.OnRaised(notifier.Raised)
			engine.OnCleared(notifier.Cleared)
		}
	}

	// Aggregator feeding the engine.
	agg, err := aggregator.New(aggregator.Options{
		HistorySize:      settings.HistorySize,
		DisplayQueueSize: settings.DisplayQueueSize,
		Alerts:           engine,
	})
	if err != nil {
		return fmt.Errorf("create aggregator: %w", err)
	}

	svc := &service{
		sessionID:  sessionID.String(),
		startedAt:  time.Now(),
		sourceMode: settings.Source.Mode,
		agg:        agg,
		engine:     engine,
		metrics:    collector,
	}

	// Optional snapshot archive.
	var arch *archiver

	if settings.Archive.Path != "" {
		repo, openErr := archive.Open(ctx, settings.Archive.Path)
		if openErr != nil {
			return fmt.Errorf("open archive: %w", openErr)
		}

		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Close archive failed", "error", closeErr)
			}
		}()

		svc.archive = repo
		arch = newArchiver(repo, svc.sessionID, collector)
	}

	agg.OnFinalized(func(s *mova.Snapshot) {
		collector.SnapshotFinalized()

		if arch != nil {
			arch.enqueue(ctx, s)
		}
	})

	// Pipeline and producer.
	pipe, err := pipeline.New(pipeline.Options{
		Aggregator: agg,
		Metrics:    collector,
		FlushEvery: settings.Recording.FlushEvery,
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	producer, replaySource, err := newProducer(settings.Source)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}

	svc.pipe, svc.replay = pipe, replaySource

	// Listeners are opened before ingestion so that address errors fail fast.
	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.GRPCAddress, err)
	}

	var httpListener net.Listener

	if settings.HTTPAddress != "" {
		httpListener, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
		if err != nil {
			_ = grpcListener.Close()

			return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if err = pipe.Start(groupCtx, producer); err != nil {
		_ = grpcListener.Close()

		if httpListener != nil {
			_ = httpListener.Close()
		}

		return fmt.Errorf("start pipeline: %w", err)
	}

	if settings.Recording.Path != "" {
		if err = pipe.StartRecording(settings.Recording.Path); err != nil {
			logger.WarnKV(ctx, "Recording disabled", "error", err)
		}
	}

	logger.InfoKV(ctx, "Viewer started",
		"version", version.Short(),
		"source", settings.Source.Mode,
		"grpc_address", grpcListener.Addr().String(),
		"http_address", settings.HTTPAddress,
		"archive", settings.Archive.Path,
	)

	group.Go(func() error {
		<-groupCtx.Done()
		pipe.Stop()

		return nil
	})

	group.Go(func() error {
		engine.Run(groupCtx, settings.Alerts.Tick)

		return nil
	})

	if arch != nil {
		group.Go(func() error {
			return arch.run(groupCtx)
		})
	}

	group.Go(func() error {
		return serveGRPC(groupCtx, grpcListener, svc)
	})

	if httpListener != nil {
		group.Go(func() error {
			return serveHTTP(groupCtx, httpListener, rest.NewHandler(ctx, svc, collector.Handler()))
		})
	}

	err = group.Wait()

	logger.Info(ctx, "Viewer stopped")

	return err
}

// loadSettings reads the configuration file and applies opts.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	override := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}

	override(&settings.Source.Mode, opts.SourceMode)
	override(&settings.Source.ReplayFile, opts.ReplayFile)
	override(&settings.Source.Speed, opts.Speed)
	override(&settings.Source.PollFile, opts.PollFile)
	override(&settings.Recording.Path, opts.RecordPath)
	override(&settings.GRPCAddress, opts.GRPCAddress)
	override(&settings.HTTPAddress, opts.HTTPAddress)

	// A replay file given on the command line implies replay mode.
	if opts.ReplayFile != "" && opts.SourceMode == "" {
		settings.Source.Mode = config.SourceReplay
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

// serveGRPC serves the query API until ctx is done.
func serveGRPC(ctx context.Context, listener net.Listener, svc *service) error {
	ctx = logger.WithName(ctx, "grpc")

	grpcServer := grpc.NewServer()
	api.Register(grpcServer, api.NewServer(svc))

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// serveHTTP serves the JSON API and metrics until ctx is done.
func serveHTTP(ctx context.Context, listener net.Listener, handler http.Handler) error {
	ctx = logger.WithName(ctx, "http")

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "HTTP server listening", "address", listener.Addr().String())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
