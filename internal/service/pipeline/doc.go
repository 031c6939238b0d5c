// Package pipeline wires a text producer through line reassembly and
// classification into the aggregator.
//
// A pump goroutine reads producer chunks, cuts them into lines and pushes
// them onto an unbounded FIFO. A single consumer goroutine pops lines in
// order and processes them one at a time. Cancellation abandons queued lines.
package pipeline
