// Package parser turns raw MOVA telemetry text into typed records.
//
// Reassembler cuts an arbitrarily chunked text stream into complete lines.
// Classifier tokenizes each line, decides its kind with an ordered set of
// rules and extracts the keyword fields into a mova.Payload. A Classifier is
// a session: it remembers the last NX link so continuation lines can be
// attributed to it, so one instance must see the lines of one stream in order.
package parser
