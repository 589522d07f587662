package tracking

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/fiducial-nav/markerpose/pnp"
	"github.com/fiducial-nav/markerpose/rimage"
	"github.com/fiducial-nav/markerpose/spatialmath"
)

const (
	overlayLineWidth = 2
	overlayTextSize  = 14
	widgetMaxArrow   = 60
	widgetArrowScale = 200
)

// Overlay draws the frame result on a copy of res.Frame: detected outlines (known markers in green, unknown in
// red), marker and world origin axes, the pose readout and, when a target is set, the movement widget. It
// returns nil when the result carries no frame.
func (s *Session) Overlay(res *FrameResult) image.Image {
	if res == nil || res.Frame == nil {
		return nil
	}
	dc := gg.NewContextForImage(res.Frame)

	for _, det := range res.Detections {
		c := color.Color(rimage.Red)
		if s.layout.Has(det.ID) {
			c = rimage.Green
		}
		rimage.DrawPolygon(dc, det.Corners[:], c, overlayLineWidth)
		rimage.DrawPoint(dc, det.Corners[0], c, 3)
		center := det.Center()
		rimage.DrawString(dc, fmt.Sprintf("%d", det.ID), image.Pt(int(center.X), int(center.Y)), c, overlayTextSize)
	}

	lines := statusLines(res)
	if res.Success {
		pose := res.Estimate.Pose
		rm := pose.RotationMatrix()
		for _, id := range res.MatchedIDs {
			marker, ok := s.layout.Marker(id)
			if !ok {
				continue
			}
			anchor := spatialmath.MarkerAxisAnchor(marker.Anchor, pose.TVec, rm)
			drawAxes(dc, spatialmath.Pose{RVec: pose.RVec, TVec: anchor}, marker.Size, res)
		}
		drawAxes(dc, pose, s.originAxisLength(), res)
		if res.Alignment != nil {
			drawMovementWidget(dc, res.Alignment)
		}
	}
	for i, line := range lines {
		rimage.DrawString(dc, line, image.Pt(10, 10+i*(overlayTextSize+4)), rimage.Yellow, overlayTextSize)
	}
	return dc.Image()
}

func (s *Session) originAxisLength() float64 {
	if s.cfg.OriginAxisLength > 0 {
		return s.cfg.OriginAxisLength
	}
	first, _ := s.layout.Marker(s.layout.IDs()[0])
	return first.Size
}

// drawAxes projects the X (red), Y (green) and Z (blue) axes of the frame pose maps from.
func drawAxes(dc *gg.Context, pose spatialmath.Pose, length float64, res *FrameResult) {
	pts, visible := pnp.ProjectPoints([]r3.Vector{
		{},
		{X: length},
		{Y: length},
		{Z: length},
	}, pose, res.Model)
	if !visible[0] {
		return
	}
	for i, c := range []color.Color{rimage.Red, rimage.Green, rimage.Blue} {
		if visible[i+1] {
			rimage.DrawLine(dc, pts[0], pts[i+1], c, 3)
		}
	}
}

func drawMovementWidget(dc *gg.Context, a *Alignment) {
	center := r2.Point{X: float64(dc.Width()) - widgetMaxArrow - 10, Y: widgetMaxArrow + 10}
	dc.SetColor(rimage.White)
	dc.DrawRectangle(center.X-widgetMaxArrow, center.Y-widgetMaxArrow, 2*widgetMaxArrow, 2*widgetMaxArrow)
	dc.Fill()

	x, y, z := movementArrows(a.TranslationError, widgetArrowScale, widgetMaxArrow)
	lockColor := func(locked bool, c color.Color) color.Color {
		if locked {
			return rimage.Green
		}
		return c
	}
	rimage.DrawLine(dc, center, r2.Point{X: center.X + x, Y: center.Y}, lockColor(a.XYPositionLocked, rimage.Red), 3)
	rimage.DrawLine(dc, center, r2.Point{X: center.X, Y: center.Y + y}, lockColor(a.XYPositionLocked, rimage.Red), 3)
	rimage.DrawLine(dc, center, r2.Point{X: center.X + z, Y: center.Y + z}, lockColor(a.ZPositionLocked, rimage.Blue), 3)
}

// statusLines is the textual pose readout: translation in layout units and Z/Y/X angles in degrees.
func statusLines(res *FrameResult) []string {
	if !res.Success {
		msg := "no pose"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return []string{"Failed: " + msg}
	}
	t := res.Estimate.Pose.TVec
	deg := res.Euler.Degrees()
	lines := []string{
		fmt.Sprintf("Translation: %+8.2f", t.Norm()),
		fmt.Sprintf("X:%+8.2f Y:%+8.2f Z:%+8.2f", t.X, t.Y, t.Z),
		fmt.Sprintf("Rotation Z:%+8.2f Y:%+8.2f X:%+8.2f deg", deg.Yaw, deg.Pitch, deg.Roll),
	}
	if res.Alignment != nil {
		lines = append(lines, res.Alignment.Status())
	}
	return lines
}
