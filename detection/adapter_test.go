package detection

import (
	"errors"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

type stubBackend struct {
	result *Result
	err    error
}

func (s *stubBackend) Detect(frame gocv.Mat) (*Result, error) { return s.result, s.err }
func (s *stubBackend) Close() error                           { return nil }

func TestAdapterFiltersClassAndConfidence(t *testing.T) {
	stub := &stubBackend{result: &Result{
		Rects: []image.Rectangle{
			image.Rect(0, 0, 10, 10),
			image.Rect(20, 0, 30, 10),
			image.Rect(40, 0, 50, 10),
		},
		ClassIDs:    []int{2, 7, 2},
		Confidences: []float64{0.9, 0.9, 0.2},
	}}

	a := NewAdapter(stub, 2, 0.35, zerolog.Nop())
	got := a.Detect(gocv.Mat{})

	if got.Len() != 1 {
		t.Fatalf("got %d detections, want 1", got.Len())
	}
	if got.Rects[0] != image.Rect(0, 0, 10, 10) {
		t.Errorf("wrong detection kept: %v", got.Rects[0])
	}
	if got.ClassIDs[0] != 2 || got.Confidences[0] != 0.9 {
		t.Errorf("parallel slices out of sync: %v %v", got.ClassIDs, got.Confidences)
	}
}

func TestAdapterDegradesOnBackendFailure(t *testing.T) {
	a := NewAdapter(&stubBackend{err: errors.New("inference blew up")}, 2, 0.35, zerolog.Nop())

	got := a.Detect(gocv.Mat{})
	if got == nil {
		t.Fatal("result must never be nil")
	}
	if got.Len() != 0 {
		t.Errorf("failure should yield an empty result, got %d", got.Len())
	}
}

func TestNoopBackendIsEmpty(t *testing.T) {
	a := NewAdapter(Noop{}, 2, 0.35, zerolog.Nop())
	if got := a.Detect(gocv.Mat{}); got.Len() != 0 {
		t.Errorf("noop backend produced detections: %d", got.Len())
	}
}
