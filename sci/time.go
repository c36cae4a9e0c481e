package sci

import (
	"time"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

// Timestamp is an absolute point in time.
type Timestamp struct {
	Time time.Time
}

func (Timestamp) TagName() tagtree.Name { return TimestampName }

func (t Timestamp) Equal(o Timestamp) bool { return t.Time.Equal(o.Time) }

// Timedelta is a signed duration.
type Timedelta struct {
	Duration time.Duration
}

func (Timedelta) TagName() tagtree.Name { return TimedeltaName }

// Interpolation selects how a time series is evaluated between samples.
type Interpolation string

const (
	Linear Interpolation = "linear"
	Step   Interpolation = "step"
)

// TimeSeries is a time-indexed signal, either discrete samples or an
// expression in t.
//
// Discrete form: Times holds strictly increasing sample times and Values
// holds one row per time (shape [n] or [n, ...]); the unit is Values.Unit.
// Expression form: Expression is set, Times and Values are empty and Unit
// names the unit of the result.
type TimeSeries struct {
	Times         []time.Time
	Values        Quantity
	Interpolation Interpolation
	Expression    *Expression
	Unit          string
	Metadata      *tree.Map
}

func (TimeSeries) TagName() tagtree.Name { return TimeSeriesName }

// IsExpression reports whether the series is defined by an expression.
func (ts TimeSeries) IsExpression() bool { return ts.Expression != nil }

// Check verifies the cross-field invariants of the series. Problems are
// reported as *tagtree.MalformedNodeError at the tree key of the field.
func (ts TimeSeries) Check() error {
	if ts.IsExpression() {
		if len(ts.Times) > 0 || len(ts.Values.Magnitude) > 0 {
			return tagtree.Malformed(tagtree.Path{"expression"}, "expression series cannot also carry samples")
		}
		return nil
	}
	switch ts.Interpolation {
	case "", Linear, Step:
	default:
		return tagtree.Malformed(tagtree.Path{"interpolation"}, "unknown interpolation %q", ts.Interpolation)
	}
	if err := CheckIncreasing(tagtree.Path{"timestamps"}, ts.Times); err != nil {
		return err
	}
	if !ts.Values.Valid() || ts.Values.IsScalar() {
		return tagtree.Malformed(tagtree.Path{"values"}, "values must be a sequence")
	}
	if n := ts.Values.Len(); n != len(ts.Times) {
		return tagtree.Malformed(tagtree.Path{"values"}, "%d values for %d timestamps", n, len(ts.Times))
	}
	return nil
}

func (ts TimeSeries) Equal(o TimeSeries) bool {
	if ts.IsExpression() != o.IsExpression() || ts.Interpolation != o.Interpolation {
		return false
	}
	// Unit only carries meaning for the expression form; samples use Values.Unit.
	if ts.IsExpression() && (ts.Unit != o.Unit || !ts.Expression.Equal(*o.Expression)) {
		return false
	}
	return timesEqual(ts.Times, o.Times) && ts.Values.Equal(o.Values) && metadataEqual(ts.Metadata, o.Metadata)
}

// CheckIncreasing reports times that are not strictly increasing as a
// *tagtree.MalformedNodeError at p. The input is never reordered.
func CheckIncreasing(p tagtree.Path, times []time.Time) error {
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return tagtree.Malformed(p, "timestamps must be strictly increasing: index %d (%s) does not follow %s",
				i, times[i].UTC().Format(time.RFC3339Nano), times[i-1].UTC().Format(time.RFC3339Nano))
		}
	}
	return nil
}

func timesEqual(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func metadataEqual(a, b *tree.Map) bool {
	if a.Len() == 0 && b.Len() == 0 {
		return true
	}
	return tree.Equal(a, b)
}
