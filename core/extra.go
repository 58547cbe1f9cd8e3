package core

import (
	"encoding/json"
)

// extraFields decodes data as an object and returns every field not listed in
// known. It returns nil when there are no unknown fields.
func extraFields(data []byte, known ...string) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	for _, k := range known {
		delete(all, k)
	}

	if len(all) == 0 {
		return nil, nil
	}

	return all, nil
}

// mergeExtra encodes v (which must encode as an object) and adds the extra
// fields that do not collide with v's own fields.
func mergeExtra(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	for k, val := range extra {
		if _, exists := fields[k]; !exists {
			fields[k] = val
		}
	}

	return json.Marshal(fields)
}

// convert re-shapes an arbitrary JSON-compatible value into out via a JSON
// round trip. Backends may hand back typed values or generic maps.
func convert(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

// ToMap converts a JSON-compatible value into an open mapping.
func ToMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}

	var m map[string]any
	if err := convert(v, &m); err != nil {
		return nil, err
	}

	return m, nil
}
