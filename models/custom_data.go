package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CustomData is an insertion-ordered string map holding a recipient's source
// columns keyed by canonical variable name. Setting an existing key replaces
// its value in place, so the first occurrence fixes the position.
type CustomData struct {
	keys   []string
	values map[string]string
}

// NewCustomData creates an empty CustomData
func NewCustomData() CustomData {
	return CustomData{values: make(map[string]string)}
}

// Set stores value under key
func (d *CustomData) Set(key, value string) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key
func (d CustomData) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (d CustomData) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys
func (d CustomData) Len() int {
	return len(d.keys)
}

// Map returns a plain map copy
func (d CustomData) Map() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object preserving key order
func (d CustomData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
// Non-string scalar values are kept in their JSON text form.
func (d *CustomData) UnmarshalJSON(data []byte) error {
	*d = NewCustomData()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("custom data must be a JSON object")
	}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected custom data key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			if bytes.Equal(raw, []byte("null")) {
				s = ""
			} else {
				s = string(raw)
			}
		}
		d.Set(key, s)
	}
	_, err = dec.Token()
	return err
}

// Value implements the driver.Valuer interface for CustomData
func (d CustomData) Value() (driver.Value, error) {
	return d.MarshalJSON()
}

// Scan implements the sql.Scanner interface for CustomData
func (d *CustomData) Scan(value any) error {
	if value == nil {
		*d = NewCustomData()
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CustomData", value)
	}

	return d.UnmarshalJSON(raw)
}
