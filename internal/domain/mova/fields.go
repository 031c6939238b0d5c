package mova

import (
	"fmt"
	"slices"
)

// StageFields holds the stage-level keyword values. A nil pointer or nil
// slice means the keyword has not been seen.
type StageFields struct {
	SMCYC *int     `json:"smcyc,omitempty"`
	LAM   *int     `json:"lam,omitempty"`
	CUT   *int     `json:"cut,omitempty"`
	SMIN  *int     `json:"smin,omitempty"`
	SAT   *string  `json:"sat,omitempty"`
	SUS   []string `json:"sus,omitempty"`
	SMF   []int    `json:"smf,omitempty"`
	DMX   []int    `json:"dmx,omitempty"`
	LMIN  []int    `json:"lmin,omitempty"`
	RCX   []int    `json:"rcx,omitempty"`
}

// Merge overwrites every field present in other.
func (f *StageFields) Merge(other StageFields) {
	if other.SMCYC != nil {
		f.SMCYC = cloneInt(other.SMCYC)
	}

	if other.LAM != nil {
		f.LAM = cloneInt(other.LAM)
	}

	if other.CUT != nil {
		f.CUT = cloneInt(other.CUT)
	}

	if other.SMIN != nil {
		f.SMIN = cloneInt(other.SMIN)
	}

	if other.SAT != nil {
		f.SAT = cloneString(other.SAT)
	}

	if other.SUS != nil {
		f.SUS = slices.Clone(other.SUS)
	}

	if other.SMF != nil {
		f.SMF = slices.Clone(other.SMF)
	}

	if other.DMX != nil {
		f.DMX = slices.Clone(other.DMX)
	}

	if other.LMIN != nil {
		f.LMIN = slices.Clone(other.LMIN)
	}

	if other.RCX != nil {
		f.RCX = slices.Clone(other.RCX)
	}
}

// Clone returns a deep copy of the fields.
func (f StageFields) Clone() StageFields {
	var out StageFields

	out.Merge(f)

	return out
}

// LAEntry is one "<N>LA v1 v2 v3" lane group of a link header.
type LAEntry struct {
	Lane int `json:"lane"`
	V1   int `json:"v1"`
	V2   int `json:"v2"`
	V3   int `json:"v3"`
}

// String renders the entry in wire form.
func (e LAEntry) String() string {
	return fmt.Sprintf("%dLA %d %d %d", e.Lane, e.V1, e.V2, e.V3)
}

// LKEntry is one "<N>LK a b c d" lane group nested in a boundary entry.
type LKEntry struct {
	Lane int `json:"lane"`
	A    int `json:"a"`
	B    int `json:"b"`
	C    int `json:"c"`
	D    int `json:"d"`
}

// String renders the entry in wire form.
func (e LKEntry) String() string {
	return fmt.Sprintf("%dLK %d %d %d %d", e.Lane, e.A, e.B, e.C, e.D)
}

// BDREntry is the boundary summary of a link boundary line with its nested lane entries.
type BDREntry struct {
	A   int       `json:"a"`
	B   int       `json:"b"`
	C   int       `json:"c"`
	LKs []LKEntry `json:"lks,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e BDREntry) Clone() BDREntry {
	e.LKs = slices.Clone(e.LKs)

	return e
}

// String renders a compact summary of the entry.
func (e BDREntry) String() string {
	return fmt.Sprintf("BDR %d %d %d [%d LK]", e.A, e.B, e.C, len(e.LKs))
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}
