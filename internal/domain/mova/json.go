package mova

import (
	"encoding/json"
	"fmt"
	"time"
)

// recordJSON is the wire form of Record: the payload travels next to an
// explicit kind so it can be decoded into the right type.
type recordJSON struct {
	Kind       Kind            `json:"kind"`
	Seq        int64           `json:"seq"`
	ReceivedAt time.Time       `json:"received_at"`
	RawLine    string          `json:"raw_line"`
	Stage      *int            `json:"stage,omitempty"`
	Link       *int            `json:"link,omitempty"`
	Age        *int            `json:"age,omitempty"`
	TimeOfDay  *TimeOfDay      `json:"time_of_day,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Kind:       r.Kind(),
		Seq:        r.Seq,
		ReceivedAt: r.ReceivedAt,
		RawLine:    r.RawLine,
		Stage:      r.Stage,
		Link:       r.Link,
		Age:        r.Age,
		TimeOfDay:  r.TimeOfDay,
	}

	if r.Payload != nil {
		var err error
		if out.Payload, err = json.Marshal(r.Payload); err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", r.Kind(), err)
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = Record{
		Seq:        in.Seq,
		ReceivedAt: in.ReceivedAt,
		RawLine:    in.RawLine,
		Stage:      in.Stage,
		Link:       in.Link,
		Age:        in.Age,
		TimeOfDay:  in.TimeOfDay,
	}

	payload := newPayload(in.Kind)
	if payload == nil {
		return nil
	}

	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", in.Kind, err)
		}
	}

	r.Payload = payload

	return nil
}

// newPayload allocates the payload type of kind, or nil for KindOther.
//
//nolint:ireturn // The sealed Payload variant is the point.
func newPayload(kind Kind) Payload {
	switch kind {
	case KindStageHeader:
		return new(StageHeader)
	case KindStageDetail:
		return new(StageDetail)
	case KindStageMinLine:
		return new(StageMinLine)
	case KindLinkHeader:
		return new(LinkHeader)
	case KindLinkBoundary:
		return new(LinkBoundary)
	case KindLinkOption:
		return new(LinkOption)
	case KindLinkContinuation:
		return new(LinkContinuation)
	default:
		return nil
	}
}
