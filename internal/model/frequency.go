package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FrequencyMap counts occurrences of string keys and remembers the order in
// which each key was first seen. The zero value is an empty map ready to use.
type FrequencyMap struct {
	keys   []string
	counts map[string]int
}

// Inc adds one to key, appending it to the key order on first sight.
func (f *FrequencyMap) Inc(key string) {
	f.add(key, 1)
}

func (f *FrequencyMap) add(key string, n int) {
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	if _, ok := f.counts[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.counts[key] += n
}

// Get returns the count for key.
func (f FrequencyMap) Get(key string) (int, bool) {
	n, ok := f.counts[key]
	return n, ok
}

// Len returns the number of distinct keys.
func (f FrequencyMap) Len() int { return len(f.keys) }

// Keys returns the keys in first-occurrence order.
func (f FrequencyMap) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Total returns the sum of all counts.
func (f FrequencyMap) Total() int {
	total := 0
	for _, n := range f.counts {
		total += n
	}
	return total
}

// Points projects the map into ordered (key, count) pairs.
func (f FrequencyMap) Points() []ChartPoint {
	points := make([]ChartPoint, 0, len(f.keys))
	for _, k := range f.keys {
		points = append(points, ChartPoint{Key: k, Count: f.counts[k]})
	}
	return points
}

// MarshalJSON encodes the map as a JSON object whose members follow key order.
func (f FrequencyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", f.counts[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping member order as key order.
func (f *FrequencyMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = FrequencyMap{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("frequency map: expected object, got %v", tok)
	}

	out := FrequencyMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("frequency map: expected string key, got %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("frequency map: value for %q: %w", key, err)
		}
		if n < 0 {
			return fmt.Errorf("frequency map: negative count %d for %q", n, key)
		}
		out.add(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
