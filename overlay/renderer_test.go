package overlay

import (
	"bytes"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"parkwatch/detection"
	"parkwatch/occupancy"
	"parkwatch/pkg/geometry"
	"parkwatch/zones"
)

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func testZones(t *testing.T) zones.List {
	t.Helper()
	list, err := zones.Parse([]byte(`[
		[[100, 100], [200, 100], [200, 200], [100, 200]],
		[[300, 100], [400, 100], [400, 200], [300, 200]]
	]`))
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestAnnotateDoesNotMutateInput(t *testing.T) {
	frame := testFrame(t)
	before := frame.Clone()
	defer before.Close()

	list := testZones(t)
	dets := &detection.Result{
		Rects:       []image.Rectangle{image.Rect(120, 120, 180, 180)},
		ClassIDs:    []int{2},
		Confidences: []float64{0.9},
	}
	matches, _ := occupancy.MatchCenters([]geometry.Point{geometry.RectCenter(dets.Rects[0])}, list)
	res := occupancy.Resolve(list, matches, occupancy.NoZone, occupancy.NoZone)

	out := NewRenderer().Annotate(frame, list, res, dets)
	defer out.Close()

	if !bytes.Equal(frame.ToBytes(), before.ToBytes()) {
		t.Error("input frame was mutated")
	}
}

func TestAnnotateKeepsDimensions(t *testing.T) {
	frame := testFrame(t)
	list := testZones(t)
	res := occupancy.Resolve(list, nil, 1, 2)

	out := NewRenderer().Annotate(frame, list, res, &detection.Result{})
	defer out.Close()

	if out.Rows() != frame.Rows() || out.Cols() != frame.Cols() {
		t.Errorf("output %dx%d, want %dx%d", out.Cols(), out.Rows(), frame.Cols(), frame.Rows())
	}
}

func TestAnnotateEmptyZoneList(t *testing.T) {
	frame := testFrame(t)
	before := frame.Clone()
	defer before.Close()

	res := occupancy.Resolve(nil, nil, occupancy.NoZone, occupancy.NoZone)
	out := NewRenderer().Annotate(frame, nil, res, &detection.Result{})
	defer out.Close()

	// The banner and summary panel still render on the copy.
	if bytes.Equal(out.ToBytes(), before.ToBytes()) {
		t.Error("expected banner drawing on the output frame")
	}
	if !bytes.Equal(frame.ToBytes(), before.ToBytes()) {
		t.Error("input frame was mutated")
	}
}

func TestAnnotateSkipsDegenerateZone(t *testing.T) {
	frame := testFrame(t)
	list, err := zones.Parse([]byte(`[
		[[100, 100], [100, 100], [100, 100], [100, 100]],
		[[300, 100], [400, 100], [400, 200], [300, 200]]
	]`))
	if err != nil {
		t.Fatal(err)
	}
	res := occupancy.Resolve(list, nil, occupancy.NoZone, occupancy.NoZone)

	out := NewRenderer().Annotate(frame, list, res, &detection.Result{})
	defer out.Close()

	if out.Empty() {
		t.Fatal("expected a rendered frame")
	}
}
