package identity

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// KeySeparator is the delimiter between the segments of a serialized key.
const KeySeparator = ":"

// KeySerializer turns a Key into the string used for map lookups.
// Implementations must be deterministic and should be injective over the ids
// an application actually uses.
type KeySerializer interface {
	SerializeKey(key Key) string
}

var defaultSerializer KeySerializer = &defaultKeySerializer{}

// defaultKeySerializer joins connection, entity type and id with KeySeparator.
// Segments are not escaped: a connection or entity type containing the separator
// can collide with a different key. Use NewEscapingKeySerializer when ids or
// names may contain it.
type defaultKeySerializer struct {
	escape bool
}

// NewDefaultKeySerializer creates the plain connection:entityType:id serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// NewEscapingKeySerializer creates a serializer that escapes backslashes and
// separators inside every segment, so distinct keys never share a string.
func NewEscapingKeySerializer() KeySerializer {
	return &defaultKeySerializer{escape: true}
}

// SerializeKey renders key as connection:entityType:id.
func (s *defaultKeySerializer) SerializeKey(key Key) string {
	parts := []string{
		key.Connection(),
		key.EntityType(),
		s.serializeValue(key.ID()),
	}
	if s.escape {
		for i, p := range parts {
			parts[i] = escapeSegment(p)
		}
	}
	return strings.Join(parts, KeySeparator)
}

// serializeValue renders a primary key value. Integer kinds of any width render
// the same way so an int64 read from storage matches an int requested by a caller.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return ""
	}

	if str, ok := v.(fmt.Stringer); ok {
		return str.String()
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if rt.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return s.serializeValue(rv.Elem().Interface())
	}

	// []byte ids come back from some drivers for text columns
	if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
		return string(rv.Bytes())
	}

	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int64(f)) {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%v", f)
	case reflect.String, reflect.Bool:
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// jsonFallback is used for composite ids.
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s:%v", reflect.TypeOf(v).String(), v)
	}
	return string(data)
}

func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, KeySeparator, `\`+KeySeparator)
}

// SerializeID renders a primary key value the way the default serializer does,
// so ids of different integer widths compare equal.
func SerializeID(id any) string {
	return (&defaultKeySerializer{}).serializeValue(id)
}
