package identity

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DefaultDateFormat is the layout used when a model does not configure one.
const DefaultDateFormat = "2006-01-02 15:04:05"

// IsMoreRecent reports whether attrs hold newer data than cached.
//
// Models without timestamps always accept incoming data, and so does a row
// without an updated-at value. Otherwise the row is newer only when the cached
// timestamp is strictly before the incoming one.
func IsMoreRecent(cached Model, attrs Attributes) (bool, error) {
	if !cached.UsesTimestamps() {
		return true, nil
	}

	column := cached.UpdatedAtColumn()
	raw, ok := attrs.Get(column)
	if !ok || isNilValue(raw) {
		return true, nil
	}

	incoming, err := ParseTimestamp(raw, cached.DateFormat())
	if err != nil {
		return false, Detail(ErrUnparseableTimestamp, "identity: incoming "+column+" cannot be parsed",
			map[string]any{"column": column, "value": raw})
	}

	current, ok := cached.Attribute(column)
	if !ok || isNilValue(current) {
		return true, nil
	}

	existing, err := ParseTimestamp(current, cached.DateFormat())
	if err != nil {
		return false, Detail(ErrUnparseableTimestamp, "identity: cached "+column+" cannot be parsed",
			map[string]any{"column": column, "value": current})
	}

	return existing.Before(incoming), nil
}

// ParseTimestamp converts a raw column value into a time. Accepted inputs are
// time values, epoch seconds (numeric or numeric string) and strings matching
// layout. Anything else returns ErrUnparseableTimestamp.
func ParseTimestamp(value any, layout string) (time.Time, error) {
	if layout == "" {
		layout = DefaultDateFormat
	}

	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case int:
		return time.Unix(int64(v), 0), nil
	case int8:
		return time.Unix(int64(v), 0), nil
	case int16:
		return time.Unix(int64(v), 0), nil
	case int32:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case uint:
		return time.Unix(int64(v), 0), nil
	case uint8:
		return time.Unix(int64(v), 0), nil
	case uint16:
		return time.Unix(int64(v), 0), nil
	case uint32:
		return time.Unix(int64(v), 0), nil
	case uint64:
		return time.Unix(int64(v), 0), nil
	case float64:
		return fromEpochFloat(v), nil
	case float32:
		return fromEpochFloat(float64(v)), nil
	case json.Number:
		return parseTimestampString(string(v), layout)
	case []byte:
		return parseTimestampString(string(v), layout)
	case string:
		return parseTimestampString(v, layout)
	}

	return time.Time{}, ErrUnparseableTimestamp
}

// isNilValue reports whether v is nil or a typed nil pointer, map or slice.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func parseTimestampString(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpochFloat(f), nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, ErrUnparseableTimestamp
	}
	return t, nil
}

func fromEpochFloat(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
