package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// errAbsent marks an optional field whose source value coerces to "absent"
// (empty string). The engine drops the field instead of writing it.
var errAbsent = fmt.Errorf("value absent")

type coerceFunc func(v any) (any, error)

var coercions = map[string]coerceFunc{
	"string":    coerceString,
	"upper":     coerceUpper,
	"decimal":   coerceDecimal,
	"int":       coerceInt64,
	"uint16":    coerceUint16,
	"uint32":    coerceUint32,
	"uint64":    coerceUint64,
	"timestamp": coerceTimestamp,
}

func coerceString(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return fmt.Sprintf("%v", v), nil
}

// coerceUpper canonicalizes enum-ish strings to upper case.
func coerceUpper(v any) (any, error) {
	s, err := coerceString(v)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(strings.TrimSpace(s.(string))), nil
}

func coerceDecimal(v any) (any, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, errAbsent
		}
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %q", t)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %q", t.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint64:
		return decimal.NewFromUint64(t), nil
	}
	return nil, fmt.Errorf("cannot coerce %T to decimal", v)
}

func coerceInt64(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("integer overflow: %d", t)
		}
		return int64(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", t.String())
		}
		return n, nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("not an integer: %v", t)
		}
		return int64(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, errAbsent
		}
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to integer", v)
}

func coerceUint64(v any) (any, error) {
	n, err := coerceInt64(v)
	if err != nil {
		if u, ok := v.(uint64); ok {
			return u, nil
		}
		return nil, err
	}
	i := n.(int64)
	if i < 0 {
		return nil, fmt.Errorf("negative value %d for unsigned field", i)
	}
	return uint64(i), nil
}

func coerceUint32(v any) (any, error) {
	u, err := coerceUint64(v)
	if err != nil {
		return nil, err
	}
	n := u.(uint64)
	if n > math.MaxUint32 {
		return nil, fmt.Errorf("value %d overflows uint32", n)
	}
	return uint32(n), nil
}

func coerceUint16(v any) (any, error) {
	u, err := coerceUint64(v)
	if err != nil {
		return nil, err
	}
	n := u.(uint64)
	if n > math.MaxUint16 {
		return nil, fmt.Errorf("value %d overflows uint16", n)
	}
	return uint16(n), nil
}

// epochNanoFloor: integer timestamps below this are treated as epoch seconds,
// above as epoch nanoseconds. The boundary is ~year 2255 in seconds and
// ~1970-04 in nanoseconds, so real feeds never straddle it.
const epochNanoFloor = int64(9_000_000_000)

// coerceTimestamp accepts epoch nanoseconds (vendor wire format), epoch
// seconds, RFC 3339, or a bare calendar date. Result is always UTC.
func coerceTimestamp(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return epochToTime(t), nil
	case int:
		return epochToTime(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("timestamp overflow: %d", t)
		}
		return epochToTime(int64(t)), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("not a timestamp: %q", t.String())
		}
		return epochToTime(n), nil
	case float64:
		return epochToTime(int64(t)), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, errAbsent
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(n), nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), nil
		}
		if ts, err := time.Parse("2006-01-02", s); err == nil {
			return ts.UTC(), nil
		}
		return nil, fmt.Errorf("not a timestamp: %q", s)
	}
	return nil, fmt.Errorf("cannot coerce %T to timestamp", v)
}

func epochToTime(n int64) time.Time {
	if n > epochNanoFloor || n < -epochNanoFloor {
		return time.Unix(0, n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
