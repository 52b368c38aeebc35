// Package occupancy derives per-zone parking state from detection centers.
// Everything here is pure: no I/O, no clocks, no retained state between
// frames.
package occupancy

import (
	"parkwatch/pkg/geometry"
	"parkwatch/zones"
)

// NoZone marks an unset assigned/highlighted index.
const NoZone = -1

// Match links one detection to the zone containing its center.
type Match struct {
	Detection int // index into the per-frame detection slice
	Zone      int // 1-based zone index
}

// MatchCenters assigns each detection center to the first zone, in list
// order, whose polygon contains it. Containment is inclusive: a center on
// the zone boundary counts as inside. A center inside several overlapping
// zones matches only the lowest-indexed one; a center inside no zone
// produces no match. Zones with fewer than three distinct vertices cannot
// contain anything and are reported in skipped instead of crashing the
// matcher.
func MatchCenters(centers []geometry.Point, list zones.List) (matches []Match, skipped []int) {
	usable := make([]bool, len(list))
	for i, z := range list {
		if geometry.EffectiveVertices(z.Polygon()) < 3 {
			skipped = append(skipped, z.Index)
			continue
		}
		usable[i] = true
	}

	for di, center := range centers {
		for i, z := range list {
			if !usable[i] {
				continue
			}
			if geometry.Contains(z.Polygon(), center) {
				matches = append(matches, Match{Detection: di, Zone: z.Index})
				break
			}
		}
	}
	return matches, skipped
}
