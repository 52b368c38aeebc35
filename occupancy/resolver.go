package occupancy

import "parkwatch/zones"

// Status is the derived state of one zone for one frame.
type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
	StatusAssigned Status = "assigned"
)

// Resolution is the full per-frame state derivation. It is a total,
// deterministic function of its inputs: resolving the same triple twice
// yields identical values.
type Resolution struct {
	// States maps 1-based zone index to its status. Assignment overrides
	// detection: the assigned zone reports "assigned" even when a
	// detection center sits inside it.
	States map[int]Status

	// Occupant maps an occupied zone's index to the detection index whose
	// center claimed it, for bounding-box attribution in the overlay. The
	// assigned zone keeps its occupant entry so the consumer can tell the
	// spot was physically taken.
	Occupant map[int]int

	// OccupiedCount excludes the assigned zone even when it is physically
	// occupied; it feeds the summary counters, not the state map.
	OccupiedCount int
	AssignedCount int
	Available     int
	Total         int

	// Highlighted is carried through untouched as a rendering hint; it
	// never affects States or the counters.
	Highlighted int
}

// Resolve derives every zone's status from the matcher output plus the
// externally-set assigned and highlighted indices. An assigned index that
// does not name a real zone is treated as unset.
func Resolve(list zones.List, matches []Match, assigned, highlighted int) Resolution {
	res := Resolution{
		States:      make(map[int]Status, len(list)),
		Occupant:    make(map[int]int),
		Total:       len(list),
		Highlighted: highlighted,
	}

	for _, m := range matches {
		if _, taken := res.Occupant[m.Zone]; !taken {
			res.Occupant[m.Zone] = m.Detection
		}
	}

	assignedValid := assigned >= 1 && assigned <= len(list)
	for _, z := range list {
		_, occupied := res.Occupant[z.Index]
		switch {
		case assignedValid && z.Index == assigned:
			res.States[z.Index] = StatusAssigned
		case occupied:
			res.States[z.Index] = StatusOccupied
			res.OccupiedCount++
		default:
			res.States[z.Index] = StatusFree
		}
	}

	if assignedValid {
		res.AssignedCount = 1
	}
	res.Available = res.Total - res.OccupiedCount - res.AssignedCount
	if res.Available < 0 {
		res.Available = 0
	}
	return res
}
