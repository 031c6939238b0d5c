package mova

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind classifies a protocol line.
type Kind uint8

const (
	// KindOther is any line the classifier does not understand.
	KindOther Kind = iota
	// KindStageHeader is an "S <stage> <time> ..." line; it opens a new snapshot.
	KindStageHeader
	// KindStageDetail is an "SMCYC ..." line.
	KindStageDetail
	// KindStageMinLine is an "[age] SMIN ..." line.
	KindStageMinLine
	// KindLinkHeader is an NX line carrying ESLI and LA groups.
	KindLinkHeader
	// KindLinkBoundary is an NX line carrying a BDR summary and LK groups.
	KindLinkBoundary
	// KindLinkOption is an NX line carrying OPT data.
	KindLinkOption
	// KindLinkContinuation is an IG/SDEM/BON/RCIN line extending the last NX line.
	KindLinkContinuation
)

//nolint:gochecknoglobals // Lookup table for Kind names.
var kindNames = [...]string{
	KindOther:            "Other",
	KindStageHeader:      "StageHeader",
	KindStageDetail:      "StageDetail",
	KindStageMinLine:     "StageMinLine",
	KindLinkHeader:       "LinkHeader",
	KindLinkBoundary:     "LinkBoundary",
	KindLinkOption:       "LinkOption",
	KindLinkContinuation: "LinkContinuation",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOther,
		KindStageHeader,
		KindStageDetail,
		KindStageMinLine,
		KindLinkHeader,
		KindLinkBoundary,
		KindLinkOption,
		KindLinkContinuation,
	}
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)

			return nil
		}
	}

	return fmt.Errorf("unknown record kind %q", text)
}

// Payload is the kind-specific content of a Record. The set of
// implementations is closed to this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

// StageHeader is the payload of a KindStageHeader record.
// Stage number and time live on the Record itself.
type StageHeader struct {
	Fields StageFields `json:"fields"`
}

// StageDetail is the payload of a KindStageDetail record.
type StageDetail struct {
	Fields StageFields `json:"fields"`
}

// StageMinLine is the payload of a KindStageMinLine record.
type StageMinLine struct {
	Fields StageFields `json:"fields"`
}

// LinkHeader is the payload of a KindLinkHeader record.
type LinkHeader struct {
	ESLI *string   `json:"esli,omitempty"`
	LAs  []LAEntry `json:"las"`
}

// LinkBoundary is the payload of a KindLinkBoundary record.
type LinkBoundary struct {
	Boundary BDREntry `json:"boundary"`
}

// LinkOption is the payload of a KindLinkOption record.
type LinkOption struct {
	OptBoundaryA *int    `json:"opt_bdr_a,omitempty"`
	OptBoundaryB *int    `json:"opt_bdr_b,omitempty"`
	OptBoundaryC *int    `json:"opt_bdr_c,omitempty"`
	CF           *int    `json:"cf,omitempty"`
	DEM          *string `json:"dem,omitempty"`
	DEMRaw       *string `json:"dem_raw,omitempty"`
	RCX          []int   `json:"rcx,omitempty"`
}

// LinkContinuation is the payload of a KindLinkContinuation record.
type LinkContinuation struct {
	IG   *int    `json:"ig,omitempty"`
	SDEM *string `json:"sdem,omitempty"`
	BON  []int   `json:"bon,omitempty"`
	RCIN []int   `json:"rcin,omitempty"`
}

func (*StageHeader) Kind() Kind      { return KindStageHeader }
func (*StageDetail) Kind() Kind      { return KindStageDetail }
func (*StageMinLine) Kind() Kind     { return KindStageMinLine }
func (*LinkHeader) Kind() Kind       { return KindLinkHeader }
func (*LinkBoundary) Kind() Kind     { return KindLinkBoundary }
func (*LinkOption) Kind() Kind       { return KindLinkOption }
func (*LinkContinuation) Kind() Kind { return KindLinkContinuation }

func (*StageHeader) isPayload()      {}
func (*StageDetail) isPayload()      {}
func (*StageMinLine) isPayload()     {}
func (*LinkHeader) isPayload()       {}
func (*LinkBoundary) isPayload()     {}
func (*LinkOption) isPayload()       {}
func (*LinkContinuation) isPayload() {}

// Record is one classified protocol line. Records are never modified after
// the classifier returns them.
type Record struct {
	// Seq is the classifier's sequence number for this line.
	Seq int64 `json:"seq"`
	// ReceivedAt is when the line was classified.
	ReceivedAt time.Time `json:"received_at"`
	// RawLine is the line as received, without its terminator.
	RawLine string `json:"raw_line"`
	// Stage is the stage number of a stage header.
	Stage *int `json:"stage,omitempty"`
	// Link is the link number of NX and continuation lines.
	Link *int `json:"link,omitempty"`
	// Age is the leading bare integer of SMIN and NX lines.
	Age *int `json:"age,omitempty"`
	// TimeOfDay is the clock token of header, boundary and option lines.
	TimeOfDay *TimeOfDay `json:"time_of_day,omitempty"`
	// Payload is nil for KindOther.
	Payload Payload `json:"-"`
}

// Kind returns the record kind derived from its payload.
func (r *Record) Kind() Kind {
	if r == nil || r.Payload == nil {
		return KindOther
	}

	return r.Payload.Kind()
}

// summaryRawLimit caps the raw text shown for unclassified lines.
const summaryRawLimit = 60

// Summary renders a short human-readable description for event feeds.
func (r *Record) Summary() string {
	switch p := r.Payload.(type) {
	case *StageHeader:
		tod := "--:--:--"
		if r.TimeOfDay != nil {
			tod = r.TimeOfDay.String()
		}

		return fmt.Sprintf("Stage %s @ %s", optionalInt(r.Stage), tod)
	case *StageDetail:
		if p.Fields.SMCYC != nil {
			return fmt.Sprintf("SMCYC=%d", *p.Fields.SMCYC)
		}

		return "Stage detail"
	case *StageMinLine:
		if p.Fields.SMIN != nil {
			return fmt.Sprintf("SMIN=%d", *p.Fields.SMIN)
		}

		return "Min line"
	case *LinkHeader:
		return fmt.Sprintf("NX %s ESLI", optionalInt(r.Link))
	case *LinkBoundary:
		return fmt.Sprintf("NX %s BDR", optionalInt(r.Link))
	case *LinkOption:
		var b strings.Builder

		fmt.Fprintf(&b, "NX %s OPT", optionalInt(r.Link))

		if p.CF != nil {
			fmt.Fprintf(&b, " CF=%d", *p.CF)
		}

		return b.String()
	case *LinkContinuation:
		return fmt.Sprintf("NX %s IG/SDEM", optionalInt(r.Link))
	default:
		if len(r.RawLine) > summaryRawLimit {
			return r.RawLine[:summaryRawLimit] + "..."
		}

		return r.RawLine
	}
}

// Event is the display-feed row produced for every processed line.
type Event struct {
	Time               time.Time `json:"time"`
	Kind               Kind      `json:"kind"`
	Stage              *int      `json:"stage,omitempty"`
	Link               *int      `json:"link,omitempty"`
	Summary            string    `json:"summary"`
	SnapshotSequenceID int64     `json:"snapshot_sequence_id"`
	RawLine            string    `json:"raw_line"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

func optionalInt(v *int) string {
	if v == nil {
		return "?"
	}

	return fmt.Sprint(*v)
}

// cloneInts keeps nil and empty distinct.
func cloneInts(v []int) []int {
	return slices.Clone(v)
}
