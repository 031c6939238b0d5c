package viewer

import (
	"context"
	"time"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

const (
	// archiveQueueSize bounds snapshots waiting to be written.
	archiveQueueSize = 256
	// archiveFlushTimeout bounds writing the backlog at shutdown.
	archiveFlushTimeout = 5 * time.Second
)

// archiver writes finalized snapshots off the ingestion path.
type archiver struct {
	repo      archive.Repository
	sessionID string
	metrics   *metrics.Collector
	queue     chan *mova.Snapshot
}

func newArchiver(repo archive.Repository, sessionID string, collector *metrics.Collector) *archiver {
	return &archiver{
		repo:      repo,
		sessionID: sessionID,
		metrics:   collector,
		queue:     make(chan *mova.Snapshot, archiveQueueSize),
	}
}

// enqueue hands a finalized snapshot to the writer. It never blocks; when the
// writer falls behind the snapshot is dropped and counted as a failure.
func (a *archiver) enqueue(ctx context.Context, snapshot *mova.Snapshot) {
	select {
	case a.queue <- snapshot:
	default:
		a.metrics.ArchiveWrite(errArchiveBacklog)
		logger.WarnKV(ctx, "Archive queue full, snapshot dropped", "sequence_id", snapshot.SequenceID)
	}
}

// run writes queued snapshots until ctx is done, then writes what is left.
func (a *archiver) run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "archive")

	for {
		select {
		case snapshot := <-a.queue:
			a.save(ctx, snapshot)
		case <-ctx.Done():
			a.flush(ctx)

			return nil
		}
	}
}

func (a *archiver) flush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveFlushTimeout)
	defer cancel()

	for {
		select {
		case snapshot := <-a.queue:
			a.save(flushCtx, snapshot)
		default:
			return
		}
	}
}

func (a *archiver) save(ctx context.Context, snapshot *mova.Snapshot) {
	err := a.repo.Save(ctx, a.sessionID, snapshot)
	a.metrics.ArchiveWrite(err)

	if err != nil {
		logger.ErrorKV(ctx, "Archive write failed", "sequence_id", snapshot.SequenceID, "error", err)

		return
	}

	logger.DebugKV(ctx, "Snapshot archived", "sequence_id", snapshot.SequenceID)
}
