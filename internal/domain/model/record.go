package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is an opaque mapping from field name to value that preserves the
// insertion order of its keys. Order matters both for the wire format the
// portal emits and for the structural digests the local table engine samples.
//
// Values hold the JSON scalar set: string, float64, bool, nil, []any and
// *Record for nested objects.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordFromMap builds a record from a plain map. Keys are inserted in
// sorted order so the result is deterministic.
func RecordFromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord()
	for _, k := range keys {
		r.Set(k, m[k])
	}

	return r
}

// Set stores a value under key, appending the key on first insertion.
func (r *Record) Set(key string, value any) *Record {
	if r.values == nil {
		r.values = make(map[string]any)
	}

	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value

	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.values == nil {
		return nil, false
	}

	v, ok := r.values[key]

	return v, ok
}

// Has reports whether key is present, regardless of its value.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)

	return ok
}

// Delete removes key and its value.
func (r *Record) Delete(key string) {
	if r == nil || r.values == nil {
		return
	}

	if _, ok := r.values[key]; !ok {
		return
	}

	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)

			break
		}
	}
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}

	out := make([]string, len(r.keys))
	copy(out, r.keys)

	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}

	return len(r.keys)
}

// Clone returns a shallow copy: keys and the top-level value map are copied,
// nested values are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}

	return out
}

// Merge shallow-copies every field of patch into the record, overwriting
// existing values.
func (r *Record) Merge(patch *Record) {
	if patch == nil {
		return
	}

	for _, k := range patch.keys {
		r.Set(k, patch.values[k])
	}
}

// ID returns the numeric identifier field when present and positive.
func (r *Record) ID() (int64, bool) {
	v, ok := r.Get("id")
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int64(n), true
		}
	case int64:
		if n > 0 {
			return n, true
		}
	case int:
		if n > 0 {
			return int64(n), true
		}
	}

	return 0, false
}

// IsDeleted reports whether the soft-delete marker is set to a non-null value.
func (r *Record) IsDeleted() bool {
	v, ok := r.Get("deleted_at")

	return ok && v != nil
}

// ToggleDeleted flips deleted_at between null and the current timestamp,
// mirroring the server-side soft-delete toggle optimistically.
func (r *Record) ToggleDeleted(now time.Time) {
	if r.IsDeleted() {
		r.Set("deleted_at", nil)

		return
	}

	r.Set("deleted_at", now.UTC().Format(time.RFC3339))
}

// MarshalJSON writes the record as a JSON object with keys in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshalling key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshalling field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving its key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	if tok == nil {
		*r = Record{values: make(map[string]any)}

		return nil
	}

	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decoding record: expected object, got %v", tok)
	}

	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = *decoded

	return nil
}

func decodeObject(dec *json.Decoder) (*Record, error) {
	r := NewRecord()

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding record key: %w", err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decoding record key: got %v", keyTok)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", key, err)
		}

		r.Set(key, value)
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	return r, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			items := make([]any, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return items, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}
