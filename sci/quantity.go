// Package sci defines the scientific domain objects that tagtree documents
// carry. Objects are plain values; their tree shapes live in package
// convert.
package sci

import (
	"fmt"
	"math"
	"slices"

	"github.com/reoring/tagtree"
)

// Namespace is the tag namespace of every bundled object family.
const Namespace = "tagtree.dev"

func name(n string) tagtree.Name { return tagtree.Name{Namespace: Namespace, Name: n} }

// Tag families.
var (
	QuantityName         = name("unit/quantity")
	UnitName             = name("unit/unit")
	TimestampName        = name("time/timestamp")
	TimedeltaName        = name("time/timedelta")
	TimeSeriesName       = name("core/time_series")
	ExpressionName       = name("core/mathematical_expression")
	LCSName              = name("core/transformations/local_coordinate_system")
	TransformationName   = name("core/transformations/coordinate_transformation")
	HierarchyName        = name("core/transformations/coordinate_system_hierarchy")
	GrooveName           = name("core/iso_9692_1_groove")
	SpatialDataName      = name("core/geometry/spatial_data")
	MeasurementErrorName = name("measurement/error")
	SourceName           = name("measurement/source")
	MeasurementName      = name("measurement/measurement")
	EquipmentName        = name("equipment/generic_equipment")
)

// Quantity is a magnitude with a unit. The unit string is kept verbatim;
// no unit arithmetic is performed. A nil Shape marks a scalar; otherwise
// Magnitude holds the row-major elements of an array of that shape.
type Quantity struct {
	Magnitude []float64
	Shape     []int
	Unit      string
}

// Scalar returns a scalar quantity.
func Scalar(v float64, unit string) Quantity {
	return Quantity{Magnitude: []float64{v}, Unit: unit}
}

// Vector returns a one-dimensional quantity.
func Vector(unit string, vs ...float64) Quantity {
	return Quantity{Magnitude: append([]float64{}, vs...), Shape: []int{len(vs)}, Unit: unit}
}

// Array returns a quantity of the given shape over row-major elements.
func Array(unit string, shape []int, flat []float64) (Quantity, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Quantity{}, fmt.Errorf("sci: negative dimension in shape %v", shape)
		}
		n *= d
	}
	if len(shape) == 0 || n != len(flat) {
		return Quantity{}, fmt.Errorf("sci: %d elements do not fill shape %v", len(flat), shape)
	}
	return Quantity{Magnitude: append([]float64{}, flat...), Shape: append([]int{}, shape...), Unit: unit}, nil
}

func (Quantity) TagName() tagtree.Name { return QuantityName }

// IsScalar reports whether q holds a single value without shape.
func (q Quantity) IsScalar() bool { return q.Shape == nil }

// Value returns the scalar magnitude, or NaN for arrays.
func (q Quantity) Value() float64 {
	if !q.IsScalar() || len(q.Magnitude) != 1 {
		return math.NaN()
	}
	return q.Magnitude[0]
}

// Len returns the length of the outermost dimension; 0 for scalars.
func (q Quantity) Len() int {
	if q.IsScalar() {
		return 0
	}
	return q.Shape[0]
}

// Valid reports whether Magnitude fills Shape.
func (q Quantity) Valid() bool {
	if q.IsScalar() {
		return len(q.Magnitude) == 1
	}
	n := 1
	for _, d := range q.Shape {
		n *= d
	}
	return n == len(q.Magnitude)
}

func (q Quantity) Equal(o Quantity) bool {
	return q.Unit == o.Unit && slices.Equal(q.Shape, o.Shape) && floatsEqual(q.Magnitude, o.Magnitude)
}

func (q Quantity) String() string {
	if q.IsScalar() && len(q.Magnitude) == 1 {
		return fmt.Sprintf("%g %s", q.Magnitude[0], q.Unit)
	}
	return fmt.Sprintf("%v%v %s", q.Shape, q.Magnitude, q.Unit)
}

// Unit is a standalone unit of measure.
type Unit struct {
	Symbol string
}

func (Unit) TagName() tagtree.Name { return UnitName }

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
