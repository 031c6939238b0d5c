package parser

import (
	"strconv"
	"strings"
)

// keywords delimits free-text runs. Matching is case-insensitive.
//
//nolint:gochecknoglobals // Fixed protocol vocabulary.
var keywords = map[string]struct{}{
	"S": {}, "SMF": {}, "SAT": {}, "LAM": {}, "CUT": {}, "SMCYC": {}, "DMX": {},
	"SUS": {}, "SMIN": {}, "LMIN": {}, "RCX": {}, "NX": {}, "ESLI": {}, "BDR": {},
	"OPT": {}, "CF": {}, "DEM": {}, "SDEM": {}, "BON": {}, "RCIN": {},
}

// igPrefix marks the inline IG value of a continuation line.
const igPrefix = "IG:"

func isKeyword(token string) bool {
	_, ok := keywords[strings.ToUpper(token)]

	return ok
}

func parseInt(token string) (int, bool) {
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}

	return v, true
}

func isInt(token string) bool {
	_, ok := parseInt(token)

	return ok
}

// laneToken matches "<N><suffix>" tokens such as "1LA" or "12LK".
func laneToken(token, suffix string) (int, bool) {
	if len(token) <= len(suffix) || !strings.HasSuffix(token, suffix) {
		return 0, false
	}

	return parseInt(strings.TrimSuffix(token, suffix))
}

// cursor walks a token slice. Reads past the end yield zero values.
type cursor struct {
	tokens []string
	pos    int
}

func (c *cursor) more() bool {
	return c.pos < len(c.tokens)
}

func (c *cursor) peek() string {
	return c.at(0)
}

// at returns the token offset positions ahead of the cursor, or "".
func (c *cursor) at(offset int) string {
	if i := c.pos + offset; i >= 0 && i < len(c.tokens) {
		return c.tokens[i]
	}

	return ""
}

// has reports whether a token exists offset positions ahead.
func (c *cursor) has(offset int) bool {
	return c.pos+offset < len(c.tokens)
}

func (c *cursor) skip(n int) {
	c.pos += n
}

// intAt parses the token offset positions ahead; missing or malformed tokens read as absent.
func (c *cursor) intAt(offset int) (int, bool) {
	if !c.has(offset) {
		return 0, false
	}

	return parseInt(c.at(offset))
}

// intOr returns the integer at offset or zero.
func (c *cursor) intOr(offset int) int {
	v, _ := c.intAt(offset)

	return v
}

// ints consumes a run of integer tokens. The result is non-nil even when the run is empty.
func (c *cursor) ints() []int {
	out := make([]int, 0)

	for c.more() {
		v, ok := parseInt(c.peek())
		if !ok {
			break
		}

		out = append(out, v)
		c.pos++
	}

	return out
}

// words consumes tokens until stop reports true.
func (c *cursor) words(stop func(string) bool) []string {
	out := make([]string, 0)

	for c.more() && !stop(c.peek()) {
		out = append(out, c.peek())
		c.pos++
	}

	return out
}
