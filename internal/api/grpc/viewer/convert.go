package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

//nolint:gochecknoglobals // Read-only codec settings.
var (
	nullJSON = []byte("null")

	unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// ToStruct converts the JSON object form of v into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}

	out := new(structpb.Struct)
	if bytes.Equal(data, nullJSON) {
		return out, nil
	}

	if err = unmarshalOptions.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}

	return out, nil
}

// ToList converts the JSON array form of v into a ListValue.
func ToList(v any) (*structpb.ListValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}

	out := new(structpb.ListValue)
	if bytes.Equal(data, nullJSON) {
		return out, nil
	}

	if err = unmarshalOptions.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert %T to list: %w", v, err)
	}

	return out, nil
}

// FromMessage decodes msg into out through its JSON form. It reverses
// ToStruct and ToList.
func FromMessage(msg proto.Message, out any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}

	return nil
}
