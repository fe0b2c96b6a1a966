package identity

import (
	"reflect"
	"sort"
)

// Attributes is an ordered, string keyed set of raw column values.
// It is the unit passed between storage and the materializer.
// The zero value is an empty, ready to use set.
type Attributes struct {
	keys   []string
	values map[string]any
}

// NewAttributes builds Attributes from alternating name/value pairs.
// A non-string name or a trailing name without value is ignored.
func NewAttributes(pairs ...any) Attributes {
	var a Attributes
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		a.Set(name, pairs[i+1])
	}
	return a
}

// AttributesFromMap builds Attributes from a plain map. Keys are sorted
// so the resulting order is deterministic.
func AttributesFromMap(m map[string]any) Attributes {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var a Attributes
	for _, k := range keys {
		a.Set(k, m[k])
	}
	return a
}

// Set stores value under name, keeping the original position of an existing name.
func (a *Attributes) Set(name string, value any) {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, exists := a.values[name]; !exists {
		a.keys = append(a.keys, name)
	}
	a.values[name] = value
}

// Get returns the value stored under name.
func (a Attributes) Get(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has reports whether name is present, even if its value is nil.
func (a Attributes) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Delete removes name. It is a no-op when name is absent.
func (a *Attributes) Delete(name string) {
	if _, ok := a.values[name]; !ok {
		return
	}
	delete(a.values, name)
	for i, k := range a.keys {
		if k == name {
			a.keys = append(a.keys[:i:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the attribute names in insertion order.
func (a Attributes) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a.keys)
}

// Each calls fn for every attribute in order until fn returns false.
func (a Attributes) Each(fn func(name string, value any) bool) {
	for _, k := range a.keys {
		if !fn(k, a.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy. Values are copied shallowly.
func (a Attributes) Clone() Attributes {
	out := Attributes{
		keys:   make([]string, len(a.keys)),
		values: make(map[string]any, len(a.values)),
	}
	copy(out.keys, a.keys)
	for k, v := range a.values {
		out.values[k] = v
	}
	return out
}

// Merge returns a copy of a with every attribute of other applied on top.
func (a Attributes) Merge(other Attributes) Attributes {
	out := a.Clone()
	other.Each(func(name string, value any) bool {
		out.Set(name, value)
		return true
	})
	return out
}

// Diff returns the attributes of a whose value is missing from or different in base.
func (a Attributes) Diff(base Attributes) Attributes {
	var out Attributes
	a.Each(func(name string, value any) bool {
		prev, ok := base.Get(name)
		if !ok || !reflect.DeepEqual(prev, value) {
			out.Set(name, value)
		}
		return true
	})
	return out
}

// Map returns the attributes as a plain map.
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}
