package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/parser"
	"github.com/oshokin/mova-viewer/internal/repository/recording"
	"github.com/oshokin/mova-viewer/internal/service/aggregator"
)

// Pipeline statuses set by the pipeline itself. Producers add their own.
const (
	StatusIdle    = "Idle"
	StatusRunning = "Running"
	StatusStopped = "Stopped"
)

// ErrNoProducer is returned when Start is called without a producer.
var ErrNoProducer = errors.New("no producer")

// Options configures a Pipeline.
type Options struct {
	// Aggregator receives every processed line and record.
	Aggregator *aggregator.Aggregator
	// Classifier parses lines; a fresh one is created when nil.
	Classifier *parser.Classifier
	// Metrics is optional.
	Metrics *metrics.Collector
	// FlushEvery is the recording flush period in lines.
	FlushEvery int
}

// Pipeline runs one producer at a time into the aggregator.
type Pipeline struct {
	agg         *aggregator.Aggregator
	classifier  *parser.Classifier
	reassembler *parser.Reassembler
	metrics     *metrics.Collector
	flushEvery  int

	// mu guards the run state below.
	mu       sync.Mutex
	producer Producer
	queue    *lineQueue
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	status   string

	// recMu is held for one recording write at a time.
	recMu sync.Mutex
	// recorder is nil while not recording.
	recorder *recording.Recorder
	// recordFailed suppresses repeated error logs for one recording.
	recordFailed bool
}

// New creates an idle pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}

	if opts.Classifier == nil {
		opts.Classifier = parser.NewClassifier()
	}

	if opts.FlushEvery <= 0 {
		opts.FlushEvery = recording.DefaultFlushEvery
	}

	done := make(chan struct{})
	close(done)

	return &Pipeline{
		agg:         opts.Aggregator,
		classifier:  opts.Classifier,
		reassembler: parser.NewReassembler(),
		metrics:     opts.Metrics,
		flushEvery:  opts.FlushEvery,
		done:        done,
		status:      StatusIdle,
	}, nil
}

// Start stops any running producer and begins ingesting from producer.
func (p *Pipeline) Start(ctx context.Context, producer Producer) error {
	if producer == nil {
		return ErrNoProducer
	}

	p.Stop()

	ctx = logger.WithName(ctx, "pipeline")
	runCtx, cancel := context.WithCancel(ctx)

	queue := newLineQueue()
	done := make(chan struct{})

	p.mu.Lock()
	p.reassembler.Reset()
	p.producer, p.queue, p.cancel, p.done = producer, queue, cancel, done
	p.mu.Unlock()

	p.wg.Add(2)

	go func() {
		defer p.wg.Done()

		p.pump(runCtx, producer, queue)
	}()

	go func() {
		defer p.wg.Done()
		defer close(done)

		p.consume(runCtx, queue)
	}()

	if err := producer.Start(runCtx); err != nil {
		p.mu.Lock()
		p.cancel, p.producer = nil, nil
		p.mu.Unlock()

		cancel()
		p.wg.Wait()
		p.setStatus(runCtx, StatusStopped)

		return fmt.Errorf("start producer: %w", err)
	}

	p.setStatus(runCtx, StatusRunning)

	return nil
}

// Stop cancels ingestion, stops the producer and closes any recording.
// Lines still queued are abandoned.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, producer := p.cancel, p.producer
	p.cancel, p.producer = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	producer.Stop()
	p.wg.Wait()

	if err := p.StopRecording(); err != nil {
		logger.WarnKV(context.Background(), "Close recording failed", "error", err)
	}

	p.setStatus(context.Background(), StatusStopped)
}

// Done is closed when the consumer exits, either after cancellation or
// after the producer finished and every line was processed.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done
}

// Status returns the latest pipeline or producer status.
func (p *Pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

// Pending returns the number of queued lines.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()

	if queue == nil {
		return 0
	}

	return queue.size()
}

func (p *Pipeline) setStatus(ctx context.Context, status string) {
	p.mu.Lock()
	changed := p.status != status
	p.status = status
	p.mu.Unlock()

	if changed {
		logger.InfoKV(ctx, "Status changed", "status", status)
	}
}

// pump moves producer output into the queue until ctx is done or every
// producer channel is closed.
func (p *Pipeline) pump(ctx context.Context, producer Producer, queue *lineQueue) {
	chunks, statuses, errs := producer.Chunks(), producer.Status(), producer.Errors()

	for chunks != nil || statuses != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil

				if ctx.Err() != nil {
					return
				}

				if tail, hasTail := p.reassembler.Flush(); hasTail {
					queue.push(tail)
				}

				queue.seal()

				continue
			}

			for line := range p.reassembler.Feed(chunk) {
				queue.push(line)
			}

			p.metrics.SetQueueDepth(queue.size())
		case status, ok := <-statuses:
			if !ok {
				statuses = nil

				continue
			}

			p.setStatus(ctx, status)
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			p.metrics.ProducerFailed()
			logger.WarnKV(ctx, "Producer error", "error", err)
		}
	}
}

// consume processes queued lines one at a time, in order.
func (p *Pipeline) consume(ctx context.Context, queue *lineQueue) {
	for {
		line, err := queue.pop(ctx)
		if err != nil {
			if errors.Is(err, errQueueClosed) {
				logger.Info(ctx, "Input exhausted")
			}

			return
		}

		p.process(ctx, line)
		p.metrics.SetQueueDepth(queue.size())
	}
}

// process handles one line. A panic skips the line and keeps the loop alive.
func (p *Pipeline) process(ctx context.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.LineFailed()
			logger.ErrorKV(ctx, "Line processing failed", "panic", r, "line", line)
		}
	}()

	p.agg.IngestRawLine(line)
	p.record(ctx, line)

	rec := p.classifier.Classify(line)

	p.agg.OnRecord(rec)
	p.agg.EnqueueEvent(rec)
	p.metrics.LineProcessed(rec.Kind())
}
