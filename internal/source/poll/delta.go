package poll

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// tailProbe is the maximum length of the previous tail searched in the new text.
const tailProbe = 4096

// Delta returns the part of current that was not present in last.
//
// In order: the whole text on the first poll, the suffix after last when
// current extends it, the text after the last tailProbe bytes of last when
// they occur in current, the text after the longest overlap of last's end
// with current's start, and finally the whole text.
func Delta(last, current string) string {
	if last == "" {
		return current
	}

	if strings.HasPrefix(current, last) {
		return current[len(last):]
	}

	tail := last[len(last)-min(tailProbe, len(last)):]
	if idx := strings.Index(current, tail); idx >= 0 {
		return current[idx+len(tail):]
	}

	if overlap := diffmatchpatch.New().DiffCommonOverlap(last, current); overlap > 0 {
		return current[overlap:]
	}

	return current
}
