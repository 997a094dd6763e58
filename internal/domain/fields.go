package domain

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fields is an ordered mapping from structural path (e.g. "user.tags[0]")
// to leaf text. Keys are unique; insertion order follows document order and
// re-setting an existing key keeps its original position.
//
// A decoded frame's Fields are shared read-only once the codec returns.
type Fields struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewFields returns an empty field map.
func NewFields() *Fields {
	return &Fields{m: orderedmap.New[string, string]()}
}

// Set stores value under path.
func (f *Fields) Set(path, value string) {
	if f.m == nil {
		f.m = orderedmap.New[string, string]()
	}
	f.m.Set(path, value)
}

// Get returns the value stored under path.
func (f *Fields) Get(path string) (string, bool) {
	if f == nil || f.m == nil {
		return "", false
	}
	return f.m.Get(path)
}

// Has reports whether path is present.
func (f *Fields) Has(path string) bool {
	_, ok := f.Get(path)
	return ok
}

// Len returns the number of paths.
func (f *Fields) Len() int {
	if f == nil || f.m == nil {
		return 0
	}
	return f.m.Len()
}

// Keys returns the paths in insertion order.
func (f *Fields) Keys() []string {
	if f == nil || f.m == nil {
		return nil
	}
	keys := make([]string, 0, f.m.Len())
	for pair := f.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for every path in insertion order until fn returns false.
func (f *Fields) Range(fn func(path, value string) bool) {
	if f == nil || f.m == nil {
		return
	}
	for pair := f.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Merge copies every entry of other into f, preserving other's order.
func (f *Fields) Merge(other *Fields) {
	other.Range(func(path, value string) bool {
		f.Set(path, value)
		return true
	})
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	if f == nil || f.m == nil {
		return []byte("{}"), nil
	}
	return f.m.MarshalJSON()
}
