package building

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v2"
)

// Properties is an ordered, string-keyed bag of provenance data (source file,
// IFC GUID, Revit element id...). The calculators never read it.
type Properties struct {
	keys   []string
	values map[string]any
}

// Set stores a value, keeping the original insertion position for existing keys
func (p *Properties) Set(key string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (p Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of entries
func (p Properties) Len() int {
	return len(p.keys)
}

// UnmarshalYAML keeps document order by decoding through yaml.MapSlice
func (p *Properties) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms yaml.MapSlice
	if err := unmarshal(&ms); err != nil {
		return err
	}
	for _, item := range ms {
		p.Set(fmt.Sprint(item.Key), item.Value)
	}
	return nil
}

// MarshalYAML emits the entries in insertion order
func (p Properties) MarshalYAML() (interface{}, error) {
	ms := make(yaml.MapSlice, 0, len(p.keys))
	for _, k := range p.keys {
		ms = append(ms, yaml.MapItem{Key: k, Value: p.values[k]})
	}
	return ms, nil
}

// MarshalJSON emits a JSON object with keys in insertion order
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(jsonSafe(p.values[k]))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonSafe converts the map[interface{}]interface{} values yaml.v2 produces
// for nested mappings into something encoding/json accepts
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case yaml.MapSlice:
		out := make(map[string]any, len(t))
		for _, item := range t {
			out[fmt.Sprint(item.Key)] = jsonSafe(item.Value)
		}
		return out
	case []interface{}:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonSafe(val)
		}
		return out
	default:
		return v
	}
}
