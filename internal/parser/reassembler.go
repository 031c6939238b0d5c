package parser

import (
	"iter"
	"strings"
)

// Reassembler buffers partial text across chunk boundaries and yields only
// complete lines. Lines end with "\n"; one preceding "\r" is stripped.
// It is not safe for concurrent use.
type Reassembler struct {
	// carry holds text after the last newline seen so far.
	carry string
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return new(Reassembler)
}

// Feed appends chunk to the carried text and returns the complete lines it
// now holds. Lines are taken from the buffer as the sequence is consumed;
// stopping early leaves the rest for the next Feed.
func (r *Reassembler) Feed(chunk string) iter.Seq[string] {
	r.carry += chunk

	return func(yield func(string) bool) {
		for {
			end := strings.IndexByte(r.carry, '\n')
			if end < 0 {
				return
			}

			line := r.carry[:end]
			r.carry = r.carry[end+1:]

			if !yield(strings.TrimSuffix(line, "\r")) {
				return
			}
		}
	}
}

// Flush returns and clears the unterminated tail. It is meant for stream
// teardown only; ok is false when nothing is pending.
func (r *Reassembler) Flush() (line string, ok bool) {
	if r.carry == "" {
		return "", false
	}

	line, r.carry = r.carry, ""

	return line, true
}

// Pending returns the number of buffered bytes.
func (r *Reassembler) Pending() int {
	return len(r.carry)
}

// Reset drops any buffered text.
func (r *Reassembler) Reset() {
	r.carry = ""
}
