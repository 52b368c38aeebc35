// Package detection wraps the object detector behind a stable interface.
package detection

import (
	"image"

	"gocv.io/x/gocv"
)

// Result is the output of one detection pass. The three slices are
// parallel and always the same length.
type Result struct {
	Rects       []image.Rectangle
	ClassIDs    []int
	Confidences []float64
}

// Len returns the number of detections in the result.
func (r *Result) Len() int { return len(r.Rects) }

// Backend performs raw inference on a frame. Implementations return every
// candidate above their own internal floor; class and threshold filtering
// is the adapter's job.
type Backend interface {
	Detect(frame gocv.Mat) (*Result, error)
	Close() error
}

// Noop is a backend that never detects anything. It keeps the frame loop
// branch-free in modes that run without a model.
type Noop struct{}

func (Noop) Detect(frame gocv.Mat) (*Result, error) { return &Result{}, nil }
func (Noop) Close() error                           { return nil }
