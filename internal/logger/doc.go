// Package logger wraps zap for the viewer binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and per-logger level overrides,
//   - call-site helpers (Infof, WarnKV, ErrorKV, ...).
//
// Services never hold a logger field; they carry a named logger in the
// context and log through these helpers.
package logger
