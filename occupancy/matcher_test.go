package occupancy

import (
	"testing"

	"parkwatch/pkg/geometry"
	"parkwatch/zones"
)

func mustZones(t *testing.T, data string) zones.List {
	t.Helper()
	list, err := zones.Parse([]byte(data))
	if err != nil {
		t.Fatalf("zone fixture: %v", err)
	}
	return list
}

const twoSpots = `[
	[[0, 0], [10, 0], [10, 10], [0, 10]],
	[[20, 0], [30, 0], [30, 10], [20, 10]]
]`

func TestMatchCentersBasic(t *testing.T) {
	list := mustZones(t, twoSpots)
	centers := []geometry.Point{
		geometry.Pt(5, 5),   // zone 1
		geometry.Pt(25, 5),  // zone 2
		geometry.Pt(15, 5),  // between zones, no match
		geometry.Pt(50, 50), // nowhere near
	}

	matches, skipped := MatchCenters(centers, list)
	if len(skipped) != 0 {
		t.Errorf("no zones should be skipped, got %v", skipped)
	}
	want := []Match{{Detection: 0, Zone: 1}, {Detection: 1, Zone: 2}}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %v", len(want), matches)
	}
	for i, m := range want {
		if matches[i] != m {
			t.Errorf("match %d: got %v, want %v", i, matches[i], m)
		}
	}
}

func TestMatchCentersFirstMatchWins(t *testing.T) {
	// Two identical overlapping zones: the lower index claims the center,
	// and each detection matches at most one zone.
	overlapping := mustZones(t, `[
		[[0, 0], [10, 0], [10, 10], [0, 10]],
		[[0, 0], [10, 0], [10, 10], [0, 10]]
	]`)

	matches, _ := MatchCenters([]geometry.Point{geometry.Pt(5, 5)}, overlapping)
	if len(matches) != 1 {
		t.Fatalf("a detection matches at most one zone, got %v", matches)
	}
	if matches[0].Zone != 1 {
		t.Errorf("first match must win: got zone %d, want 1", matches[0].Zone)
	}
}

func TestMatchCentersBoundaryInclusive(t *testing.T) {
	list := mustZones(t, twoSpots)

	// Exactly on a vertex and exactly on an edge of zone 1.
	for _, c := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(10, 5)} {
		matches, _ := MatchCenters([]geometry.Point{c}, list)
		if len(matches) != 1 || matches[0].Zone != 1 {
			t.Errorf("boundary center %v should match zone 1, got %v", c, matches)
		}
	}
}

func TestMatchCentersSkipsDegenerateZones(t *testing.T) {
	// Zone 1 collapses to a line; zone 2 is fine. The degenerate zone is
	// reported, not fatal, and matching continues.
	list := mustZones(t, `[
		[[0, 0], [10, 0], [10, 0], [0, 0]],
		[[20, 0], [30, 0], [30, 10], [20, 10]]
	]`)

	matches, skipped := MatchCenters([]geometry.Point{geometry.Pt(25, 5)}, list)
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Errorf("zone 1 should be reported skipped, got %v", skipped)
	}
	if len(matches) != 1 || matches[0].Zone != 2 {
		t.Errorf("matching should continue past the degenerate zone, got %v", matches)
	}
}
