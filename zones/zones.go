// Package zones loads and persists the parking zone geometry file: an
// ordered array of quadrilaterals, each exactly four [x, y] points in the
// source frame's native resolution. Zone indices are 1-based and equal to
// the position in the file; the list is immutable for the lifetime of a
// streaming session.
package zones

import (
	"encoding/json"
	"fmt"
	"os"

	"parkwatch/pkg/geometry"
)

// VertexCount is the required number of points per zone.
const VertexCount = 4

// Zone is one monitored parking spot: a quadrilateral in native frame
// pixels, identified by its 1-based position in the zone list.
type Zone struct {
	Index  int
	Points [VertexCount]geometry.Point
}

// Polygon returns the zone's vertices as a slice for geometric tests.
func (z Zone) Polygon() []geometry.Point {
	return z.Points[:]
}

// List is the ordered set of zones for one street.
type List []Zone

// Load reads a zone geometry file. Any entry that is not exactly four
// two-value points makes the whole file invalid: no zones are loaded and
// the error names the offending entry.
func Load(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone file: %w", err)
	}
	return Parse(data)
}

// Parse decodes zone geometry from raw JSON.
func Parse(data []byte) (List, error) {
	var raw [][][2]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse zone file: %w", err)
	}

	list := make(List, 0, len(raw))
	for i, quad := range raw {
		if len(quad) != VertexCount {
			return nil, fmt.Errorf("zone %d has %d points, want exactly %d", i+1, len(quad), VertexCount)
		}
		z := Zone{Index: i + 1}
		for j, pt := range quad {
			z.Points[j] = geometry.Pt(pt[0], pt[1])
		}
		list = append(list, z)
	}
	return list, nil
}

// Save writes the zone list back out in the same array-of-quadrilaterals
// format the editor produces.
func Save(path string, list List) error {
	raw := make([][][2]float64, len(list))
	for i, z := range list {
		quad := make([][2]float64, VertexCount)
		for j, pt := range z.Points {
			quad[j] = [2]float64{pt.X, pt.Y}
		}
		raw[i] = quad
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode zones: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write zone file: %w", err)
	}
	return nil
}
