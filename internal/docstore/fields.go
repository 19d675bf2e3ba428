package docstore

import (
	"encoding/json"
	"maps"
	"math"
	"time"
)

// Clone returns a shallow copy of f with nested maps copied as well.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		switch m := v.(type) {
		case Fields:
			out[k] = m.Clone()
		case map[string]any:
			out[k] = Fields(m).Clone()
		default:
			out[k] = v
		}
	}
	return out
}

// Merge returns f with patch applied on top.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	maps.Copy(out, patch.Clone())
	return out
}

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Int64 reads a numeric field. JSON decoding may yield float64 or
// json.Number; both are accepted when integral.
func (f Fields) Int64(key string) (int64, bool) {
	switch v := f[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		// [-2^63, 2^63) is exactly the int64 range.
		if v != math.Trunc(v) || v < -(1<<63) || v >= 1<<63 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Time reads an RFC 3339 timestamp field.
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// FormatTime encodes t the way stores persist timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
