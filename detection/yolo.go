package detection

import (
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const (
	yoloInputSize  = 416
	candidateFloor = 0.3
	nmsThreshold   = 0.4
)

// YOLO runs darknet-style inference through the OpenCV DNN module. It
// prefers the CUDA backend when the host has a working NVIDIA stack and
// silently falls back to CPU otherwise.
type YOLO struct {
	net        gocv.Net
	outNames   []string
	classNames []string
	backend    string
	mu         sync.Mutex
}

// NewYOLO loads the network and class names from disk.
func NewYOLO(weightsPath, configPath, namesPath string, log zerolog.Logger) (*YOLO, error) {
	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s and %s", weightsPath, configPath)
	}

	namesBytes, err := os.ReadFile(namesPath)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	var classNames []string
	for _, line := range strings.Split(string(namesBytes), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			classNames = append(classNames, line)
		}
	}

	y := &YOLO{net: net, classNames: classNames, backend: "CPU"}
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		y.outNames = append(y.outNames, layer.GetName())
	}

	if hasCUDACapability() {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		if y.selfTest() {
			y.backend = "CUDA"
		} else {
			log.Warn().Msg("CUDA test inference failed, falling back to CPU")
			net.SetPreferableBackend(gocv.NetBackendDefault)
			net.SetPreferableTarget(gocv.NetTargetCPU)
		}
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	log.Info().Str("backend", y.backend).Int("classes", len(classNames)).Msg("detector loaded")

	return y, nil
}

// Detect runs one forward pass and returns every candidate that survives
// non-maximum suppression. Coordinates are in the frame's native pixels.
func (y *YOLO) Detect(frame gocv.Mat) (*Result, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0,
		image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	outs := y.net.ForwardLayers(y.outNames)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())

	var rects []image.Rectangle
	var classIDs []int
	var scores []float32

	for _, out := range outs {
		cols := out.Cols()
		for r := 0; r < out.Rows(); r++ {
			row := out.RowRange(r, r+1)
			classScores := row.ColRange(5, cols)
			_, confidence, _, classLoc := gocv.MinMaxLoc(classScores)
			classScores.Close()

			if confidence > candidateFloor && classLoc.X < len(y.classNames) {
				centerX := row.GetFloatAt(0, 0) * frameW
				centerY := row.GetFloatAt(0, 1) * frameH
				width := row.GetFloatAt(0, 2) * frameW
				height := row.GetFloatAt(0, 3) * frameH
				left := int(centerX - width/2)
				top := int(centerY - height/2)

				rects = append(rects, image.Rect(left, top, left+int(width), top+int(height)))
				classIDs = append(classIDs, classLoc.X)
				scores = append(scores, confidence)
			}
			row.Close()
		}
	}

	res := &Result{}
	for _, i := range gocv.NMSBoxes(rects, scores, candidateFloor, nmsThreshold) {
		res.Rects = append(res.Rects, rects[i])
		res.ClassIDs = append(res.ClassIDs, classIDs[i])
		res.Confidences = append(res.Confidences, float64(scores[i]))
	}
	return res, nil
}

// ClassName resolves a class id to its label, or a numeric placeholder
// when the id falls outside the loaded names list.
func (y *YOLO) ClassName(id int) string {
	if id >= 0 && id < len(y.classNames) {
		return y.classNames[id]
	}
	return fmt.Sprintf("class %d", id)
}

// Backend reports which DNN backend the detector settled on.
func (y *YOLO) Backend() string { return y.backend }

func (y *YOLO) Close() error {
	return y.net.Close()
}

// selfTest runs one inference on a blank frame to prove the configured
// backend actually works.
func (y *YOLO) selfTest() bool {
	probe := gocv.NewMatWithSize(yoloInputSize, yoloInputSize, gocv.MatTypeCV8UC3)
	defer probe.Close()
	_, err := y.Detect(probe)
	return err == nil
}

// hasCUDACapability checks for an NVIDIA GPU with loaded drivers. The
// real proof is the test inference; this only rules out hosts with no
// hardware at all.
func hasCUDACapability() bool {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return false
	}
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}
