package detection

import (
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Adapter narrows a backend's raw output to one target class above a
// confidence threshold. A backend failure degrades to an empty result
// with a logged warning; it is never fatal for the frame.
type Adapter struct {
	backend   Backend
	classID   int
	threshold float64
	log       zerolog.Logger
}

func NewAdapter(backend Backend, classID int, threshold float64, log zerolog.Logger) *Adapter {
	return &Adapter{backend: backend, classID: classID, threshold: threshold, log: log}
}

// Detect returns the qualifying detections for one frame. The result is
// never nil and its slices are always parallel.
func (a *Adapter) Detect(frame gocv.Mat) *Result {
	raw, err := a.backend.Detect(frame)
	if err != nil {
		a.log.Warn().Err(err).Msg("detector failed, treating frame as empty")
		return &Result{}
	}

	out := &Result{}
	for i := range raw.Rects {
		if raw.ClassIDs[i] != a.classID || raw.Confidences[i] < a.threshold {
			continue
		}
		out.Rects = append(out.Rects, raw.Rects[i])
		out.ClassIDs = append(out.ClassIDs, raw.ClassIDs[i])
		out.Confidences = append(out.Confidences, raw.Confidences[i])
	}
	return out
}

// Close releases the underlying backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}
