// Package version exposes build metadata for mova-viewer and mova-ctl.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
package version
