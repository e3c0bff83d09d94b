package mpesa

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// GatewayLayout is the YYYYMMDDHHMMSS layout used in M-Pesa callback payloads
// (e.g. CallbackMetadata TransactionDate) and STK push passwords.
const GatewayLayout = "20060102150405"

// unixSecondsCutoff separates Unix seconds from Unix milliseconds.
const unixSecondsCutoff = 10_000_000_000

var stringLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02 15:04:05.999999999Z07", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02", false},
	{time.RFC1123Z, true},
	{time.RFC1123, true},
}

// ResolveInstant converts a heterogeneous date value into an instant.
//
// Resolution order: empty → unresolved; time values are used as-is when
// non-zero; 14-digit numbers (or digit strings) are read as gateway
// timestamps in loc; other numbers below 1e10 are Unix seconds, the rest Unix
// milliseconds; anything else goes through generic string parsing. The second
// return value is false when nothing matched, callers must treat that as an
// unknown date.
func ResolveInstant(v interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case *string:
		if val == nil {
			return time.Time{}, false
		}
		return resolveString(*val, loc)
	case string:
		return resolveString(val, loc)
	case json.Number:
		return resolveString(val.String(), loc)
	case *json.Number:
		if val == nil {
			return time.Time{}, false
		}
		return resolveString(val.String(), loc)
	case float64:
		return resolveNumber(val, loc)
	case float32:
		return resolveNumber(float64(val), loc)
	case int:
		return resolveNumber(float64(val), loc)
	case int8:
		return resolveNumber(float64(val), loc)
	case int16:
		return resolveNumber(float64(val), loc)
	case int32:
		return resolveNumber(float64(val), loc)
	case int64:
		return resolveNumber(float64(val), loc)
	case uint:
		return resolveNumber(float64(val), loc)
	case uint8:
		return resolveNumber(float64(val), loc)
	case uint16:
		return resolveNumber(float64(val), loc)
	case uint32:
		return resolveNumber(float64(val), loc)
	case uint64:
		return resolveNumber(float64(val), loc)
	default:
		return time.Time{}, false
	}
}

func resolveString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if len(s) == len(GatewayLayout) && isDigits(s) {
		if t, ok := parseGateway(s, loc); ok {
			return t, true
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return resolveNumber(n, loc)
	}

	for _, l := range stringLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func resolveNumber(n float64, loc *time.Location) (time.Time, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, false
	}

	if n == math.Trunc(n) && n >= 1e13 && n < 1e14 {
		if t, ok := parseGateway(strconv.FormatInt(int64(n), 10), loc); ok {
			return t, true
		}
	}

	if n < unixSecondsCutoff {
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).In(loc), true
	}

	if n > math.MaxInt64/2 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(n)).In(loc), true
}

// parseGateway reads a YYYYMMDDHHMMSS value. Out-of-range components are
// rejected instead of being normalised into a neighbouring date.
func parseGateway(s string, loc *time.Location) (time.Time, bool) {
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[4:6])
	day, _ := strconv.Atoi(s[6:8])
	hour, _ := strconv.Atoi(s[8:10])
	minute, _ := strconv.Atoi(s[10:12])
	second, _ := strconv.Atoi(s[12:14])

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	if day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
