package viewer

import (
	"context"
	"fmt"
	"io"

	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/render"
	"github.com/oshokin/mova-viewer/internal/service/aggregator"
	"github.com/oshokin/mova-viewer/internal/service/alerting"
	"github.com/oshokin/mova-viewer/internal/service/pipeline"
	"github.com/oshokin/mova-viewer/internal/source/replay"
)

// SummarizeOptions controls an offline replay.
type SummarizeOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ReplayFile is the recording to read.
	ReplayFile string
	// History is the number of finalized snapshots printed.
	History int
	// NoColor disables terminal colors.
	NoColor bool
}

// DefaultSummaryHistory is the number of snapshots printed by default.
const DefaultSummaryHistory = 20

// Summarize replays a recording as fast as possible without serving it,
// then prints the final state, recent history and every alert raised.
func Summarize(ctx context.Context, opts *SummarizeOptions, w io.Writer) error {
	ctx = logger.WithName(ctx, "summarize")

	if opts.ReplayFile == "" {
		return ErrNoReplayFile
	}

	settings, err := loadSettings(&Options{ConfigPath: opts.ConfigPath})
	if err != nil {
		return err
	}

	engine := alerting.NewEngine(settings.Alerts.Rules())

	agg, err := aggregator.New(aggregator.Options{
		HistorySize:      settings.HistorySize,
		DisplayQueueSize: settings.DisplayQueueSize,
		Alerts:           engine,
	})
	if err != nil {
		return fmt.Errorf("create aggregator: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Options{Aggregator: agg})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	if err = pipe.Start(ctx, replay.New(opts.ReplayFile, replay.SpeedInstant)); err != nil {
		return fmt.Errorf("start replay: %w", err)
	}

	// Block until every line is processed or the caller gives up.
	select {
	case <-pipe.Done():
	case <-ctx.Done():
		pipe.Stop()

		return ctx.Err()
	}

	pipe.Stop()

	// Rule timers are evaluated once against the wall clock at the end.
	engine.Tick()

	var printerOpts []render.Option
	if opts.NoColor {
		printerOpts = append(printerOpts, render.WithoutColor())
	}

	history := opts.History
	if history <= 0 {
		history = DefaultSummaryHistory
	}

	printer := render.New(w, printerOpts...)
	if current := agg.CurrentSnapshot(); current != nil {
		printer.Snapshot(current)
	} else {
		printer.Line("no snapshots")
	}

	printer.History(agg.History(history))
	printer.Alerts(engine.History(0))

	stats := agg.Stats()
	printer.Line("%d lines, %d snapshots", stats.TotalLines, stats.TotalSnapshots)

	return nil
}
