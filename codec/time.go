// Package codec converts time values to and from their wire strings.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp accepts RFC3339 with optional fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, fmt.Errorf("invalid RFC3339 time %q", s)
	}
	return t, nil
}

// FormatTimestamp normalizes to UTC and trims trailing zeros of the
// fraction.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatDuration renders d as an ISO 8601 duration with day, hour, minute
// and second designators, e.g. "P1DT2H0M3.5S" or "-PT0.25S".
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		if d == math.MinInt64 {
			// -d overflows; drop one nanosecond of precision.
			d++
		}
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if d%time.Second != 0 {
		secs = strconv.FormatInt(int64(d/time.Second), 10) + "." +
			strings.TrimRight(fmt.Sprintf("%09d", int64(d%time.Second)), "0")
	}
	fmt.Fprintf(&b, "P%dDT%dH%dM%sS", days, hours, minutes, secs)
	return b.String()
}

var errDuration = errors.New("want ISO 8601 PnDTnHnMnS")

// ParseDuration parses the day-time subset of ISO 8601 durations: an
// optional sign, then "P", optional weeks or days, then "T" with optional
// hours, minutes and seconds. Years and months are rejected since their
// length is calendar dependent. Components are summed in whole nanoseconds;
// fraction digits below one nanosecond are dropped.
func ParseDuration(s string) (time.Duration, error) {
	in := s
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("duration %q: %w", in, errDuration)
	}
	s = s[1:]
	// The magnitude may reach 1<<63 only for negative durations.
	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	var total uint64
	inTime := false
	units := 0
	for s != "" {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return 0, fmt.Errorf("duration %q: %w", in, errDuration)
			}
			inTime, s = true, s[1:]
			continue
		}
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == ',') {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("duration %q: %w", in, errDuration)
		}
		var unit time.Duration
		switch d := s[i]; {
		case !inTime && d == 'W':
			unit = 7 * 24 * time.Hour
		case !inTime && d == 'D':
			unit = 24 * time.Hour
		case inTime && d == 'H':
			unit = time.Hour
		case inTime && d == 'M':
			unit = time.Minute
		case inTime && d == 'S':
			unit = time.Second
		default:
			return 0, fmt.Errorf("duration %q: unsupported designator %q: %w", in, d, errDuration)
		}
		n, ok := component(s[:i], uint64(unit))
		if !ok {
			return 0, fmt.Errorf("duration %q: %w", in, errDuration)
		}
		if n > limit || total > limit-n {
			return 0, fmt.Errorf("duration %q: out of range", in)
		}
		total += n
		units++
		s = s[i+1:]
	}
	if units == 0 {
		return 0, fmt.Errorf("duration %q: %w", in, errDuration)
	}
	if neg {
		// Two's complement negation also maps 1<<63 to math.MinInt64.
		return time.Duration(-total), nil
	}
	return time.Duration(total), nil
}

// component converts a decimal number of units into nanoseconds. ok is
// false for malformed numbers and for values beyond uint64.
func component(num string, unit uint64) (uint64, bool) {
	whole, frac, hasFrac := strings.Cut(strings.ReplaceAll(num, ",", "."), ".")
	if whole == "" && (!hasFrac || frac == "") || strings.ContainsAny(frac, ".") {
		return 0, false
	}
	var w uint64
	if whole != "" {
		var err error
		if w, err = strconv.ParseUint(whole, 10, 64); err != nil {
			return 0, false
		}
	}
	if w > math.MaxUint64/unit {
		return 0, false
	}
	n := w * unit
	// Each fraction digit is worth a tenth of the previous one.
	scale := unit
	for i := 0; i < len(frac) && scale > 0; i++ {
		scale /= 10
		n += uint64(frac[i]-'0') * scale
		if n < uint64(frac[i]-'0')*scale {
			return 0, false
		}
	}
	return n, true
}
