// Package ring provides a fixed-capacity, thread-safe circular buffer that
// overwrites its oldest element once full. It backs the snapshot history
// and the bounded display feeds.
package ring
