package engine

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameSource yields sequential frames from a video feed. Read fills dst
// and reports whether a frame was produced; false means end of stream or
// a read error. Close releases the underlying handle and is safe to call
// while a Read is blocked; the blocked Read then returns false.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// FileSource reads frames from a video file or stream URL.
type FileSource struct {
	capture *gocv.VideoCapture
}

// OpenFileSource opens path as a sequential frame source.
func OpenFileSource(path string) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video source %s did not open", path)
	}
	return &FileSource{capture: capture}, nil
}

func (s *FileSource) Read(dst *gocv.Mat) bool {
	return s.capture.Read(dst)
}

func (s *FileSource) Close() error {
	return s.capture.Close()
}
