package sci

import (
	"time"

	"github.com/reoring/tagtree"
)

// Orientation is a 3x3 rotation matrix, rows first.
type Orientation [3][3]float64

// Identity is the orientation of an unrotated frame.
var Identity = Orientation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// LocalCoordinateSystem places a frame relative to its parent. A static
// system has one orientation and coordinates of shape [3]. A time-dependent
// system has strictly increasing Time, and either orientations or
// coordinates (or both) carry one entry per time step.
type LocalCoordinateSystem struct {
	Orientations []Orientation
	Coordinates  Quantity
	Time         []time.Time
}

func (LocalCoordinateSystem) TagName() tagtree.Name { return LCSName }

// Static returns a time-independent system.
func Static(o Orientation, coordinates Quantity) LocalCoordinateSystem {
	return LocalCoordinateSystem{Orientations: []Orientation{o}, Coordinates: coordinates}
}

// TimeDependent reports whether the system carries time steps.
func (l LocalCoordinateSystem) TimeDependent() bool { return len(l.Time) > 0 }

// Check verifies the dimensions of orientations and coordinates against
// the time axis. Problems are reported as *tagtree.MalformedNodeError at
// the tree key of the offending field.
func (l LocalCoordinateSystem) Check() error {
	n := len(l.Time)
	if err := CheckIncreasing(tagtree.Path{"time"}, l.Time); err != nil {
		return err
	}
	switch no := len(l.Orientations); {
	case no == 0:
		return tagtree.Malformed(tagtree.Path{"orientation"}, "missing orientation")
	case no > 1 && no != n:
		return tagtree.Malformed(tagtree.Path{"orientation"}, "%d orientations for %d time steps", no, n)
	}
	c := l.Coordinates
	if !c.Valid() || c.IsScalar() {
		return tagtree.Malformed(tagtree.Path{"coordinates"}, "coordinates must be a 3-vector or one 3-vector per time step")
	}
	switch len(c.Shape) {
	case 1:
		if c.Shape[0] != 3 {
			return tagtree.Malformed(tagtree.Path{"coordinates"}, "coordinates must have 3 components, got %d", c.Shape[0])
		}
	case 2:
		if c.Shape[1] != 3 {
			return tagtree.Malformed(tagtree.Path{"coordinates"}, "coordinates must have 3 components, got %d", c.Shape[1])
		}
		if c.Shape[0] != n {
			return tagtree.Malformed(tagtree.Path{"coordinates"}, "%d coordinate rows for %d time steps", c.Shape[0], n)
		}
	default:
		return tagtree.Malformed(tagtree.Path{"coordinates"}, "coordinates have shape %v", c.Shape)
	}
	if n > 0 && len(l.Orientations) == 1 && len(c.Shape) == 1 {
		return tagtree.Malformed(tagtree.Path{"time"}, "time given for a static system")
	}
	return nil
}

func (l LocalCoordinateSystem) Equal(o LocalCoordinateSystem) bool {
	if len(l.Orientations) != len(o.Orientations) || !timesEqual(l.Time, o.Time) {
		return false
	}
	for i := range l.Orientations {
		if l.Orientations[i] != o.Orientations[i] {
			return false
		}
	}
	return l.Coordinates.Equal(o.Coordinates)
}

// CoordinateTransformation names the placement of a frame within a
// reference system.
type CoordinateTransformation struct {
	Name            string
	ReferenceSystem string
	Transformation  LocalCoordinateSystem
}

func (CoordinateTransformation) TagName() tagtree.Name { return TransformationName }

func (c CoordinateTransformation) Equal(o CoordinateTransformation) bool {
	return c.Name == o.Name && c.ReferenceSystem == o.ReferenceSystem && c.Transformation.Equal(o.Transformation)
}
