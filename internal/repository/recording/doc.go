// Package recording stores raw telemetry lines on disk and reads them back.
//
// Files whose name ends in ".lz4" are written and read as LZ4 frames;
// anything else is plain text with one line per protocol line.
package recording
