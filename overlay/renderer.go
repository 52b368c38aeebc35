// Package overlay renders zone state and detections onto video frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"gocv.io/x/gocv"

	"parkwatch/detection"
	"parkwatch/occupancy"
	"parkwatch/pkg/geometry"
	"parkwatch/zones"
)

const (
	fillAlpha    = 0.35
	labelBGAlpha = 0.6
	fontScale    = 0.6
)

// Renderer draws the occupancy overlay. All drawing happens in the
// frame's native resolution; display scaling is the consumer's problem.
type Renderer struct {
	freeColor      color.RGBA
	occupiedColor  color.RGBA
	assignedColor  color.RGBA
	highlightColor color.RGBA
	spotBoxColor   color.RGBA
	genericColor   color.RGBA
	markerColor    color.RGBA
	fontColor      color.RGBA

	// ClassName resolves a class id to a label for generic detection
	// boxes. Optional; ids render numerically when nil.
	ClassName func(id int) string
}

func NewRenderer() *Renderer {
	return &Renderer{
		freeColor:      color.RGBA{0, 255, 0, 0},
		occupiedColor:  color.RGBA{255, 0, 0, 0},
		assignedColor:  color.RGBA{255, 165, 0, 0},
		highlightColor: color.RGBA{255, 0, 255, 0},
		spotBoxColor:   color.RGBA{0, 255, 255, 0},
		genericColor:   color.RGBA{255, 150, 0, 0},
		markerColor:    color.RGBA{255, 255, 0, 0},
		fontColor:      color.RGBA{255, 255, 255, 0},
	}
}

// Annotate renders zones, detections and the summary panel onto a copy
// of frame. The input frame is never written to. The returned Mat is
// owned by the caller.
func (r *Renderer) Annotate(frame gocv.Mat, list zones.List, res occupancy.Resolution, dets *detection.Result) gocv.Mat {
	out := frame.Clone()

	drawnBoxes := make(map[int]bool)
	if len(list) > 0 {
		r.drawZones(&out, list, res, dets, drawnBoxes)
	} else {
		gocv.PutText(&out, "ROIs not loaded for this street", image.Pt(50, 50),
			gocv.FontHersheySimplex, 1, color.RGBA{255, 0, 0, 0}, 2)
	}

	r.drawGenericBoxes(&out, dets, drawnBoxes)
	r.drawSummaryPanel(&out, res)
	return out
}

// drawZones paints the translucent zone layer and blends it over out at
// a fixed alpha, so fills, outlines and labels all share one opacity.
func (r *Renderer) drawZones(out *gocv.Mat, list zones.List, res occupancy.Resolution, dets *detection.Result, drawnBoxes map[int]bool) {
	layer := out.Clone()
	defer layer.Close()

	for _, z := range list {
		poly := z.Polygon()
		if geometry.EffectiveVertices(poly) < 3 {
			continue
		}

		status := res.States[z.Index]
		assigned := status == occupancy.StatusAssigned
		highlighted := z.Index == res.Highlighted

		zoneColor := r.freeColor
		statusText := "Free"
		thickness := 2
		switch status {
		case occupancy.StatusAssigned:
			zoneColor = r.assignedColor
			statusText = "YOUR SPOT"
			thickness = 4
		case occupancy.StatusOccupied:
			zoneColor = r.occupiedColor
			statusText = "Occupied"
		}

		pts := gocv.NewPointsVectorFromPoints([][]image.Point{imagePoints(poly)})
		gocv.FillPoly(&layer, pts, zoneColor)
		gocv.Polylines(&layer, pts, true, zoneColor, thickness)
		if highlighted && !assigned {
			gocv.Polylines(&layer, pts, true, r.highlightColor, thickness+3)
		}
		pts.Close()

		if status == occupancy.StatusOccupied {
			if det, ok := res.Occupant[z.Index]; ok && det < dets.Len() {
				drawnBoxes[det] = true
				r.blendSpotBox(&layer, dets.Rects[det])
			}
		}

		r.drawZoneLabels(&layer, z, statusText, assigned)
	}

	gocv.AddWeighted(layer, fillAlpha, *out, 1-fillAlpha, 0, out)
}

// blendSpotBox draws the bounding box attributed to an occupied zone at
// partial opacity inside the zone layer.
func (r *Renderer) blendSpotBox(layer *gocv.Mat, rect image.Rectangle) {
	boxLayer := layer.Clone()
	defer boxLayer.Close()
	gocv.Rectangle(&boxLayer, rect, r.spotBoxColor, 2)
	gocv.AddWeighted(boxLayer, 0.6, *layer, 0.4, 0, layer)
}

func (r *Renderer) drawZoneLabels(layer *gocv.Mat, z zones.Zone, statusText string, assigned bool) {
	c := geometry.Centroid(z.Polygon()).ToImagePoint()

	numText := strconv.Itoa(z.Index)
	numSize := gocv.GetTextSize(numText, gocv.FontHersheySimplex, fontScale*1.2, 2)
	numPos := image.Pt(c.X-numSize.X/2, c.Y-10)
	r.shadePatch(layer, image.Rect(numPos.X-3, numPos.Y-numSize.Y-3, numPos.X+numSize.X+3, numPos.Y+3))
	gocv.PutText(layer, numText, numPos, gocv.FontHersheySimplex, fontScale*1.2, r.fontColor, 2)

	statThickness := 1
	if assigned {
		statThickness = 2
	}
	statSize := gocv.GetTextSize(statusText, gocv.FontHersheySimplex, fontScale, statThickness)
	statPos := image.Pt(c.X-statSize.X/2, c.Y+15)
	r.shadePatch(layer, image.Rect(statPos.X-3, statPos.Y-statSize.Y-3, statPos.X+statSize.X+3, statPos.Y+3))
	gocv.PutText(layer, statusText, statPos, gocv.FontHersheySimplex, fontScale, r.fontColor, statThickness)

	if assigned {
		gocv.PutText(layer, "< >", image.Pt(c.X-10, c.Y-numSize.Y-15),
			gocv.FontHersheySimplex, 0.7, r.markerColor, 2)
	}
}

// shadePatch darkens a small rectangle behind a text label. Patches that
// would cross the frame edge are skipped rather than clipped.
func (r *Renderer) shadePatch(layer *gocv.Mat, rect image.Rectangle) {
	if !rect.In(image.Rect(0, 0, layer.Cols(), layer.Rows())) {
		return
	}
	region := layer.Region(rect)
	defer region.Close()
	dark := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0),
		region.Rows(), region.Cols(), gocv.MatTypeCV8UC3)
	defer dark.Close()
	gocv.AddWeighted(region, 1-labelBGAlpha, dark, labelBGAlpha, 1.0, &region)
}

// drawGenericBoxes outlines every detection not already attributed to a
// zone, with a class/confidence label when names are available.
func (r *Renderer) drawGenericBoxes(out *gocv.Mat, dets *detection.Result, drawnBoxes map[int]bool) {
	for i := 0; i < dets.Len(); i++ {
		if drawnBoxes[i] {
			continue
		}
		rect := dets.Rects[i]
		gocv.Rectangle(out, rect, r.genericColor, 2)

		name := fmt.Sprintf("ID:%d", dets.ClassIDs[i])
		if r.ClassName != nil {
			name = r.ClassName(dets.ClassIDs[i])
		}
		label := fmt.Sprintf("%s %.2f", name, dets.Confidences[i])
		gocv.PutText(out, label, image.Pt(rect.Min.X, rect.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, r.genericColor, 1)
	}
}

func (r *Renderer) drawSummaryPanel(out *gocv.Mat, res occupancy.Resolution) {
	bg := color.RGBA{240, 240, 240, 0}

	gocv.Rectangle(out, image.Rect(10, 5, 150, 40), bg, -1)
	gocv.PutText(out, fmt.Sprintf("Occupied: %d", res.OccupiedCount), image.Pt(20, 30),
		gocv.FontHersheySimplex, fontScale, color.RGBA{200, 0, 0, 0}, 1)

	gocv.Rectangle(out, image.Rect(170, 5, 320, 40), bg, -1)
	gocv.PutText(out, fmt.Sprintf("Available: %d", res.Available), image.Pt(180, 30),
		gocv.FontHersheySimplex, fontScale, color.RGBA{0, 150, 0, 0}, 1)

	gocv.Rectangle(out, image.Rect(340, 5, 500, 40), bg, -1)
	gocv.PutText(out, fmt.Sprintf("Assigned: %d", res.AssignedCount), image.Pt(350, 30),
		gocv.FontHersheySimplex, fontScale, color.RGBA{0, 0, 200, 0}, 1)
}

func imagePoints(poly []geometry.Point) []image.Point {
	pts := make([]image.Point, len(poly))
	for i, p := range poly {
		pts[i] = p.ToImagePoint()
	}
	return pts
}
