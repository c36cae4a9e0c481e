package sci

import (
	"slices"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

// SpatialData is a point cloud with optional triangle connectivity.
type SpatialData struct {
	Coordinates [][3]float64
	Triangles   [][3]int
	Metadata    *tree.Map
}

func (SpatialData) TagName() tagtree.Name { return SpatialDataName }

// Check reports triangle indices outside the point cloud.
func (s SpatialData) Check() error {
	for i, tri := range s.Triangles {
		for j, idx := range tri {
			if idx < 0 || idx >= len(s.Coordinates) {
				return tagtree.Malformed(tagtree.Path{"triangles", i, j}, "index %d outside %d points", idx, len(s.Coordinates))
			}
		}
	}
	return nil
}

func (s SpatialData) Equal(o SpatialData) bool {
	return slices.Equal(s.Coordinates, o.Coordinates) && slices.Equal(s.Triangles, o.Triangles) && metadataEqual(s.Metadata, o.Metadata)
}
