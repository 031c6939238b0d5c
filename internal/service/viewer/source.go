package viewer

import (
	"errors"
	"fmt"

	"github.com/oshokin/mova-viewer/internal/config"
	"github.com/oshokin/mova-viewer/internal/service/pipeline"
	"github.com/oshokin/mova-viewer/internal/source/poll"
	"github.com/oshokin/mova-viewer/internal/source/replay"
)

var (
	// ErrNoReplayFile is returned in replay mode without a file to replay.
	ErrNoReplayFile = errors.New("no replay file configured")
	// ErrNoPollFile is returned in poll mode without a file to poll.
	ErrNoPollFile = errors.New("no poll file configured")
)

// newProducer builds the producer selected by source. The replay source is
// also returned so that its speed and pause state can be controlled.
func newProducer(source config.Source) (pipeline.Producer, *replay.Source, error) {
	switch source.Mode {
	case config.SourceReplay:
		if source.ReplayFile == "" {
			return nil, nil, ErrNoReplayFile
		}

		speed, err := replay.ParseSpeed(source.Speed)
		if err != nil {
			return nil, nil, err
		}

		src := replay.New(source.ReplayFile, speed)

		return src, src, nil
	case config.SourcePoll:
		if source.PollFile == "" {
			return nil, nil, ErrNoPollFile
		}

		return poll.New(poll.Options{
			Path:        source.PollFile,
			ProcessName: source.ProcessName,
			Interval:    source.PollInterval,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", config.ErrUnknownSourceMode, source.Mode)
	}
}
