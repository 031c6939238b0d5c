// Package replay plays a recorded telemetry file back as a paced producer.
package replay
