package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is one flat JSON object from a feed. Numbers are json.Number.
type Record map[string]any

// Payload is the decoded body of a feed response.
type Payload []Record

// Clone returns a copy of p whose records can be modified independently.
// Nested values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for i, r := range p {
		out[i] = r.Clone()
	}
	return out
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DecodePayload decodes a feed body into records. A top-level object is a
// one-record payload, null is empty and non-object array members are skipped.
func DecodePayload(data []byte) (Payload, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case nil:
		return Payload{}, nil
	case map[string]any:
		return Payload{Record(v)}, nil
	case []any:
		out := make(Payload, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, Record(obj))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("top-level JSON %T is neither an array nor an object", value)
	}
}

// DecodeRecord decodes a body that must be a single JSON object.
func DecodeRecord(data []byte) (Record, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON %T is not an object", value)
	}
	return Record(obj), nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}
