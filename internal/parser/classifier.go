package parser

import (
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

// Classifier turns lines of one telemetry stream into records.
// Classify must be called from a single goroutine; NextSequenceID is safe
// for concurrent use.
type Classifier struct {
	// now stamps ReceivedAt.
	now func() time.Time
	// currentLink is the link number of the last NX line, valid when hasLink is set.
	currentLink int
	hasLink     bool
	// sequence backs NextSequenceID.
	sequence atomic.Int64
	// recovered counts lines degraded to KindOther after a panic.
	recovered atomic.Int64
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClock overrides the clock used for ReceivedAt.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClassifier returns a classifier with no current link.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{now: time.Now}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NextSequenceID returns the next value of a monotonically increasing counter starting at 1.
func (c *Classifier) NextSequenceID() int64 {
	return c.sequence.Add(1)
}

// CurrentLink returns the link continuation lines are attributed to.
func (c *Classifier) CurrentLink() (int, bool) {
	return c.currentLink, c.hasLink
}

// Recovered returns how many lines were degraded because extraction panicked.
func (c *Classifier) Recovered() int64 {
	return c.recovered.Load()
}

// Reset forgets the current link and restarts the sequence counter.
func (c *Classifier) Reset() {
	c.currentLink, c.hasLink = 0, false
	c.sequence.Store(0)
}

// IsSnapshotBoundary reports whether line opens a new stage interval.
func IsSnapshotBoundary(line string) bool {
	return isStageHeader(strings.Fields(line))
}

func isStageHeader(tokens []string) bool {
	return len(tokens) >= 3 && tokens[0] == "S"
}

// Classify parses one line. It never fails: lines that match no rule, or
// whose extraction panics, come back as KindOther with the raw text kept.
func (c *Classifier) Classify(line string) (rec *mova.Record) {
	rec = &mova.Record{
		Seq:        c.NextSequenceID(),
		ReceivedAt: c.now(),
		RawLine:    line,
	}

	defer func() {
		if r := recover(); r != nil {
			c.recovered.Add(1)

			rec = &mova.Record{
				Seq:        rec.Seq,
				ReceivedAt: rec.ReceivedAt,
				RawLine:    line,
			}
		}
	}()

	c.classify(rec, strings.TrimLeftFunc(line, unicode.IsSpace), strings.Fields(line))

	return rec
}

func (c *Classifier) classify(rec *mova.Record, trimmed string, tokens []string) {
	switch {
	case isStageHeader(tokens):
		parseStageHeader(rec, tokens)

		return
	case strings.HasPrefix(trimmed, "SMCYC"):
		rec.Payload = &mova.StageDetail{Fields: scanStageFields(&cursor{tokens: tokens})}

		return
	case len(tokens) >= 2 && (tokens[0] == "SMIN" || (isInt(tokens[0]) && tokens[1] == "SMIN")):
		parseStageMinLine(rec, tokens)

		return
	}

	if nx := slices.Index(tokens, "NX"); nx >= 0 && nx+1 < len(tokens) {
		if link, ok := parseInt(tokens[nx+1]); ok {
			c.currentLink, c.hasLink = link, true

			parseLinkLine(rec, tokens, nx, link)

			return
		}
	}

	if strings.Contains(trimmed, igPrefix) ||
		strings.HasPrefix(trimmed, "SDEM") ||
		strings.HasPrefix(trimmed, "BON") ||
		strings.HasPrefix(trimmed, "RCIN") {
		if c.hasLink {
			rec.Link = mova.IntPtr(c.currentLink)
		}

		rec.Payload = parseContinuation(&cursor{tokens: tokens})
	}
}

func parseStageHeader(rec *mova.Record, tokens []string) {
	cur := &cursor{tokens: tokens, pos: 1}

	if stage, ok := cur.intAt(0); ok {
		rec.Stage = mova.IntPtr(stage)
		cur.skip(1)
	}

	rec.TimeOfDay = timeAt(cur)
	rec.Payload = &mova.StageHeader{Fields: scanStageFields(cur)}
}

func parseStageMinLine(rec *mova.Record, tokens []string) {
	cur := &cursor{tokens: tokens}

	if age, ok := cur.intAt(0); ok {
		rec.Age = mova.IntPtr(age)
		cur.skip(1)
	}

	rec.Payload = &mova.StageMinLine{Fields: scanStageFields(cur)}
}

// timeAt consumes a time-of-day token at the cursor when there is one.
func timeAt(cur *cursor) *mova.TimeOfDay {
	if !cur.more() {
		return nil
	}

	tod, ok := mova.ParseTimeOfDay(cur.peek())
	if !ok {
		return nil
	}

	cur.skip(1)

	return &tod
}

// scanStageFields reads the stage-level keyword groups from the cursor to the end of the line.
func scanStageFields(cur *cursor) mova.StageFields {
	var fields mova.StageFields

	single := func(dst **int) {
		if v, ok := cur.intAt(1); ok {
			*dst = mova.IntPtr(v)
		}

		cur.skip(2)
	}

	for cur.more() {
		token := cur.peek()

		switch {
		case token == "SMF":
			cur.skip(1)
			fields.SMF = cur.ints()
		case token == "DMX":
			cur.skip(1)
			fields.DMX = cur.ints()
		case token == "LMIN":
			cur.skip(1)
			fields.LMIN = cur.ints()
		case token == "RCX":
			cur.skip(1)
			fields.RCX = cur.ints()
		case token == "SAT":
			cur.skip(1)
			fields.SAT = mova.StringPtr(strings.Join(cur.words(isKeyword), " "))
		case token == "SUS":
			cur.skip(1)
			fields.SUS = cur.words(isKeyword)
		case token == "LAM" && cur.has(1):
			single(&fields.LAM)
		case token == "CUT" && cur.has(1):
			single(&fields.CUT)
		case token == "SMCYC" && cur.has(1):
			single(&fields.SMCYC)
		case token == "SMIN" && cur.has(1):
			single(&fields.SMIN)
		default:
			cur.skip(1)
		}
	}

	return fields
}

// parseLinkLine fills an NX record. OPT anywhere after the link number wins
// over BDR; BDR makes a boundary line only without ESLI.
func parseLinkLine(rec *mova.Record, tokens []string, nx, link int) {
	rec.Link = mova.IntPtr(link)

	if nx > 0 {
		if age, ok := parseInt(tokens[0]); ok && age >= 0 {
			rec.Age = mova.IntPtr(age)
		}
	}

	rest := tokens[nx+2:]
	cur := &cursor{tokens: tokens, pos: nx + 2}

	switch {
	case slices.Contains(rest, "OPT"):
		rec.TimeOfDay = timeAt(cur)
		rec.Payload = parseLinkOption(cur)
	case slices.Contains(rest, "BDR") && !slices.Contains(rest, "ESLI"):
		rec.TimeOfDay = timeAt(cur)
		rec.Payload = parseLinkBoundary(cur)
	default:
		rec.Payload = parseLinkHeader(cur)
	}
}

func parseLinkHeader(cur *cursor) *mova.LinkHeader {
	header := new(mova.LinkHeader)

	for cur.more() {
		token := cur.peek()

		if token == "ESLI" && cur.has(1) {
			header.ESLI = mova.StringPtr(cur.at(1))
			cur.skip(2)

			continue
		}

		if lane, ok := laneToken(token, "LA"); ok {
			header.LAs = append(header.LAs, mova.LAEntry{
				Lane: lane,
				V1:   cur.intOr(1),
				V2:   cur.intOr(2),
				V3:   cur.intOr(3),
			})
			cur.skip(4)

			continue
		}

		cur.skip(1)
	}

	return header
}

func parseLinkBoundary(cur *cursor) *mova.LinkBoundary {
	boundary := new(mova.LinkBoundary)

	for cur.more() {
		token := cur.peek()

		if token == "BDR" {
			boundary.Boundary.A = cur.intOr(1)
			boundary.Boundary.B = cur.intOr(2)
			boundary.Boundary.C = cur.intOr(3)
			cur.skip(4)

			continue
		}

		if lane, ok := laneToken(token, "LK"); ok {
			boundary.Boundary.LKs = append(boundary.Boundary.LKs, mova.LKEntry{
				Lane: lane,
				A:    cur.intOr(1),
				B:    cur.intOr(2),
				C:    cur.intOr(3),
				D:    cur.intOr(4),
			})
			cur.skip(5)

			continue
		}

		cur.skip(1)
	}

	return boundary
}

func parseLinkOption(cur *cursor) *mova.LinkOption {
	option := new(mova.LinkOption)

	optional := func(offset int) *int {
		if v, ok := cur.intAt(offset); ok {
			return mova.IntPtr(v)
		}

		return nil
	}

	demStop := func(token string) bool {
		return isKeyword(token) || strings.HasPrefix(token, igPrefix)
	}

	for cur.more() {
		switch token := cur.peek(); {
		case token == "BDR":
			option.OptBoundaryA = optional(1)
			option.OptBoundaryB = optional(2)
			option.OptBoundaryC = optional(3)
			cur.skip(4)
		case token == "CF" && cur.has(1):
			if cf := optional(1); cf != nil {
				option.CF = cf
			}

			cur.skip(2)
		case token == "DEM":
			cur.skip(1)

			dem := strings.Join(cur.words(demStop), " ")
			option.DEM = mova.StringPtr(dem)
			option.DEMRaw = mova.StringPtr(dem)
		case token == "RCX":
			cur.skip(1)
			option.RCX = cur.ints()
		default:
			cur.skip(1)
		}
	}

	return option
}

func parseContinuation(cur *cursor) *mova.LinkContinuation {
	cont := new(mova.LinkContinuation)

	for cur.more() {
		switch token := cur.peek(); {
		case strings.HasPrefix(token, igPrefix):
			if ig, ok := parseInt(token[len(igPrefix):]); ok {
				cont.IG = mova.IntPtr(ig)
			}

			cur.skip(1)
		case token == "SDEM" && cur.has(1):
			cont.SDEM = mova.StringPtr(cur.at(1))
			cur.skip(2)
		case token == "BON":
			cur.skip(1)
			cont.BON = cur.ints()
		case token == "RCIN":
			cur.skip(1)
			cont.RCIN = cur.ints()
		default:
			cur.skip(1)
		}
	}

	return cont
}
