// Package poll turns a periodically re-read text control into a stream of
// deltas.
//
// The control is a file whose full content is rewritten by another program
// (a log viewer window dumped to disk, a serial terminal capture). Each poll
// reads the whole text and forwards only what was appended since the last
// poll. When the text was trimmed at the front, the longest matching tail of
// the previous text locates the new suffix.
package poll
