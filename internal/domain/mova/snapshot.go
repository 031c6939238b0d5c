package mova

import (
	"maps"
	"slices"
	"time"
)

// LinkState is the per-link state accumulated during one snapshot.
type LinkState struct {
	LinkNo       int        `json:"link_no"`
	ESLI         *string    `json:"esli,omitempty"`
	LAs          []LAEntry  `json:"las,omitempty"`
	BDRs         []BDREntry `json:"bdrs,omitempty"`
	DEM          *string    `json:"dem,omitempty"`
	DEMRaw       *string    `json:"dem_raw,omitempty"`
	SDEM         *string    `json:"sdem,omitempty"`
	IG           *int       `json:"ig,omitempty"`
	CF           *int       `json:"cf,omitempty"`
	RCX          []int      `json:"rcx,omitempty"`
	RCIN         []int      `json:"rcin,omitempty"`
	BON          []int      `json:"bon,omitempty"`
	OptBoundaryA *int       `json:"opt_bdr_a,omitempty"`
	OptBoundaryB *int       `json:"opt_bdr_b,omitempty"`
	OptBoundaryC *int       `json:"opt_bdr_c,omitempty"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// Clone returns a deep copy of the link state.
func (l *LinkState) Clone() *LinkState {
	if l == nil {
		return nil
	}

	out := *l
	out.ESLI = cloneString(l.ESLI)
	out.LAs = slices.Clone(l.LAs)
	out.DEM = cloneString(l.DEM)
	out.DEMRaw = cloneString(l.DEMRaw)
	out.SDEM = cloneString(l.SDEM)
	out.IG = cloneInt(l.IG)
	out.CF = cloneInt(l.CF)
	out.RCX = cloneInts(l.RCX)
	out.RCIN = cloneInts(l.RCIN)
	out.BON = cloneInts(l.BON)
	out.OptBoundaryA = cloneInt(l.OptBoundaryA)
	out.OptBoundaryB = cloneInt(l.OptBoundaryB)
	out.OptBoundaryC = cloneInt(l.OptBoundaryC)

	if l.BDRs != nil {
		out.BDRs = make([]BDREntry, len(l.BDRs))
		for i, entry := range l.BDRs {
			out.BDRs[i] = entry.Clone()
		}
	}

	return &out
}

// Snapshot is the aggregated state of one stage interval.
type Snapshot struct {
	// SequenceID identifies the snapshot; assigned once at creation, starting at 1.
	SequenceID int64 `json:"sequence_id"`
	// Stage is the stage number from the opening header.
	Stage int `json:"stage"`
	// TimeOfDay is the clock value of the opening header, when present.
	TimeOfDay *TimeOfDay `json:"time_of_day,omitempty"`
	// StartedAt is when the opening header was processed.
	StartedAt time.Time `json:"started_at"`
	// Fields are the stage-level keyword values.
	Fields StageFields `json:"fields"`
	// Links holds per-link state, created lazily.
	Links map[int]*LinkState `json:"links"`
	// Records lists every record folded into the snapshot, in arrival order.
	Records []*Record `json:"records"`
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(sequenceID int64, stage int, startedAt time.Time) *Snapshot {
	return &Snapshot{
		SequenceID: sequenceID,
		Stage:      stage,
		StartedAt:  startedAt,
		Links:      make(map[int]*LinkState),
	}
}

// Link returns the state of linkNo, creating it on first use.
func (s *Snapshot) Link(linkNo int, now time.Time) *LinkState {
	if s.Links == nil {
		s.Links = make(map[int]*LinkState)
	}

	state, ok := s.Links[linkNo]
	if !ok {
		state = &LinkState{
			LinkNo:      linkNo,
			LastUpdated: now,
		}
		s.Links[linkNo] = state
	}

	return state
}

// LinkNumbers returns the link numbers in ascending order.
func (s *Snapshot) LinkNumbers() []int {
	return slices.Sorted(maps.Keys(s.Links))
}

// Clone returns a fully independent copy. Records are immutable and shared;
// the slice holding them is not.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := &Snapshot{
		SequenceID: s.SequenceID,
		Stage:      s.Stage,
		StartedAt:  s.StartedAt,
		Fields:     s.Fields.Clone(),
		Links:      make(map[int]*LinkState, len(s.Links)),
		Records:    slices.Clone(s.Records),
	}

	if s.TimeOfDay != nil {
		tod := *s.TimeOfDay
		out.TimeOfDay = &tod
	}

	for no, state := range s.Links {
		out.Links[no] = state.Clone()
	}

	return out
}
