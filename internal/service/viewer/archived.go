package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/render"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// ArchiveOptions selects what to print from a snapshot archive.
type ArchiveOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Path overrides archive.path.
	Path string
	// SessionID lists one session's snapshots. Empty lists sessions.
	SessionID string
	// SequenceID prints one snapshot of SessionID when positive.
	SequenceID int64
	// NoColor disables terminal colors.
	NoColor bool
}

// ErrNoArchive is returned when no archive path is configured.
var ErrNoArchive = errors.New("no archive configured")

// BrowseArchive prints archived sessions, the snapshots of one session, or
// a single snapshot, reading the database directly.
func BrowseArchive(ctx context.Context, opts *ArchiveOptions, w io.Writer) error {
	ctx = logger.WithName(ctx, "archive")

	path := opts.Path
	if path == "" {
		settings, err := loadSettings(&Options{ConfigPath: opts.ConfigPath})
		if err != nil {
			return err
		}

		path = settings.Archive.Path
	}

	if path == "" {
		return ErrNoArchive
	}

	repo, err := archive.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Close archive failed", "error", closeErr)
		}
	}()

	var printerOpts []render.Option
	if opts.NoColor {
		printerOpts = append(printerOpts, render.WithoutColor())
	}

	return browse(ctx, repo, opts, render.New(w, printerOpts...))
}

func browse(ctx context.Context, repo archive.Repository, opts *ArchiveOptions, printer *render.Printer) error {
	switch {
	case opts.SessionID == "":
		sessions, err := repo.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		printer.Sessions(sessions)
	case opts.SequenceID > 0:
		snapshot, err := repo.Load(ctx, opts.SessionID, opts.SequenceID)
		if err != nil {
			return fmt.Errorf("load snapshot %d: %w", opts.SequenceID, err)
		}

		printer.Snapshot(snapshot)
	default:
		entries, err := repo.List(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("list session %s: %w", opts.SessionID, err)
		}

		printer.Entries(entries)
	}

	return nil
}
