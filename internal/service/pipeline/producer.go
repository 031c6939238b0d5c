package pipeline

import "context"

// Producer emits raw telemetry text in arbitrary chunks.
//
// Chunks is closed when the producer has no more text; Status and Errors
// may be closed at the same time or stay open until Stop.
type Producer interface {
	// Start begins producing. It must not block for the lifetime of the stream.
	Start(ctx context.Context) error
	// Stop ends production. It is safe to call more than once.
	Stop()
	// Chunks delivers text that is not necessarily newline-aligned.
	Chunks() <-chan string
	// Status delivers human-readable state changes.
	Status() <-chan string
	// Errors delivers non-fatal producer failures.
	Errors() <-chan error
}
