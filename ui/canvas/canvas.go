// Package canvas provides the spheroid editing canvas with pan, zoom, and
// polygon interaction.
package canvas

import (
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"spheroid-editor/internal/app"
	"spheroid-editor/internal/segmentation"
	"spheroid-editor/internal/selection"
	"spheroid-editor/internal/viewport"
	"spheroid-editor/pkg/geometry"
)

// vertexHitRadius is the screen-space pick distance for vertex handles,
// in pixels.
const vertexHitRadius = 8.0

// SpheroidCanvas displays one microscopy image with its segmentation
// polygons and routes all mouse interaction through the viewport and the
// selection machine.
type SpheroidCanvas struct {
	widget.BaseWidget

	state    *app.State
	view     *viewport.Viewport
	machine  *selection.Machine
	gate     *viewport.FrameGate
	flushTkr *time.Ticker
	stopCh   chan struct{}

	imageID string

	raster *fynecanvas.Raster

	// Drag state
	dragging   bool
	dragVertex int
	panLastX   float32
	panLastY   float32

	// In-progress geometry for CreatePolygon and Slice modes
	draftPoints []geometry.Point2D
	slicePoints []geometry.Point2D

	onPolygonDeleted func(polygonID string)
}

// NewSpheroidCanvas creates a canvas over the shared editor state.
func NewSpheroidCanvas(state *app.State) *SpheroidCanvas {
	sc := &SpheroidCanvas{
		state:      state,
		view:       viewport.New(),
		gate:       viewport.NewFrameGate(),
		dragVertex: -1,
		stopCh:     make(chan struct{}),
	}
	sc.machine = selection.NewMachine(func(id string) bool {
		return state.HasPolygon(sc.imageID, id)
	})
	sc.machine.OnChange(func(string, selection.EditMode) {
		sc.resetDrafts()
		sc.Refresh()
	})
	sc.view.OnChange(func() { sc.Refresh() })

	sc.raster = fynecanvas.NewRaster(sc.draw)
	sc.raster.ScaleMode = fynecanvas.ImageScalePixels

	state.On(app.EventSegmentationChanged, func(data interface{}) {
		if id, ok := data.(string); ok && id == sc.imageID {
			sc.Refresh()
		}
	})

	// Coalesced wheel events are drained once per frame.
	sc.flushTkr = time.NewTicker(time.Second / 60)
	go func() {
		for {
			select {
			case <-sc.stopCh:
				return
			case <-sc.flushTkr.C:
				if sc.gate.Pending() {
					sc.gate.Flush(sc.applyWheel)
				}
			}
		}
	}()

	sc.ExtendBaseWidget(sc)
	return sc
}

// Close stops the frame flush goroutine.
func (sc *SpheroidCanvas) Close() {
	sc.flushTkr.Stop()
	close(sc.stopCh)
}

// CreateRenderer implements fyne.Widget.
func (sc *SpheroidCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(sc.raster)
}

// Machine exposes the selection state machine for toolbar wiring.
func (sc *SpheroidCanvas) Machine() *selection.Machine {
	return sc.machine
}

// Viewport exposes the view transform for zoom controls.
func (sc *SpheroidCanvas) Viewport() *viewport.Viewport {
	return sc.view
}

// OnPolygonDeleted registers a callback fired after a delete-mode click
// removes a polygon.
func (sc *SpheroidCanvas) OnPolygonDeleted(callback func(polygonID string)) {
	sc.onPolygonDeleted = callback
}

// ShowImage switches the canvas to a different image and fits it to the
// window.
func (sc *SpheroidCanvas) ShowImage(imageID string) {
	rec := sc.state.Image(imageID)
	if rec == nil {
		return
	}
	sc.imageID = imageID
	sc.machine.Clear()
	sc.resetDrafts()

	size := rec.Size()
	sc.view.SetImageSize(size.Width, size.Height)
	sc.view.CenterOn(size.Width, size.Height)
	sc.Refresh()
}

// ImageID returns the id of the displayed image, or "".
func (sc *SpheroidCanvas) ImageID() string {
	return sc.imageID
}

// Resize keeps the viewport's container size in sync with the widget.
func (sc *SpheroidCanvas) Resize(size fyne.Size) {
	sc.BaseWidget.Resize(size)
	sc.view.SetContainerSize(float64(size.Width), float64(size.Height))
}

// Scrolled zooms about the cursor, rate-limited to one applied event per
// frame.
func (sc *SpheroidCanvas) Scrolled(ev *fyne.ScrollEvent) {
	sc.gate.Submit(viewport.WheelEvent{
		DeltaY:  float64(-ev.Scrolled.DY),
		ScreenX: float64(ev.Position.X),
		ScreenY: float64(ev.Position.Y),
	}, sc.applyWheel)
}

func (sc *SpheroidCanvas) applyWheel(ev viewport.WheelEvent) {
	sc.view.HandleWheel(ev.DeltaY, ev.ScreenX, ev.ScreenY)
}

// Tapped routes a left click by edit mode: polygon hit-testing, draft
// vertex placement, or slice endpoints.
func (sc *SpheroidCanvas) Tapped(ev *fyne.PointEvent) {
	if sc.imageID == "" {
		return
	}
	imgX, imgY := sc.view.ScreenToImage(float64(ev.Position.X), float64(ev.Position.Y))
	pt := geometry.Point2D{X: imgX, Y: imgY}

	switch sc.machine.Mode() {
	case selection.ModeCreatePolygon:
		sc.draftPoints = append(sc.draftPoints, pt)
		sc.Refresh()
		return
	case selection.ModeSlice:
		sc.handleSliceClick(pt)
		return
	case selection.ModeAddPoints:
		if sc.insertPointOnSelected(pt) {
			return
		}
	}

	if hit := sc.hitPolygon(pt); hit != "" {
		tr := sc.machine.HandlePolygonClick(hit)
		if tr.Delete {
			if err := sc.state.DeletePolygon(sc.imageID, hit); err == nil && sc.onPolygonDeleted != nil {
				sc.onPolygonDeleted(hit)
			}
		}
	} else {
		sc.machine.HandleCanvasClick()
	}
	sc.Refresh()
}

// TappedSecondary closes an in-progress draft polygon.
func (sc *SpheroidCanvas) TappedSecondary(*fyne.PointEvent) {
	if sc.machine.Mode() != selection.ModeCreatePolygon || len(sc.draftPoints) < 3 {
		return
	}
	if id, err := sc.state.CreatePolygon(sc.imageID, sc.draftPoints); err == nil {
		sc.draftPoints = nil
		sc.machine.HandlePolygonClick(id)
	}
	sc.Refresh()
}

// Dragged pans in view mode and moves vertices in edit mode.
func (sc *SpheroidCanvas) Dragged(ev *fyne.DragEvent) {
	if sc.machine.Mode() == selection.ModeEditVertices && sc.machine.SelectedID() != "" {
		sc.dragSelectedVertex(ev)
		return
	}

	if !sc.dragging {
		sc.dragging = true
	} else {
		sc.view.Pan(float64(ev.Position.X-sc.panLastX), float64(ev.Position.Y-sc.panLastY))
	}
	sc.panLastX = ev.Position.X
	sc.panLastY = ev.Position.Y
}

// DragEnd finishes a pan or vertex drag.
func (sc *SpheroidCanvas) DragEnd() {
	sc.dragging = false
	sc.dragVertex = -1
}

func (sc *SpheroidCanvas) dragSelectedVertex(ev *fyne.DragEvent) {
	imgX, imgY := sc.view.ScreenToImage(float64(ev.Position.X), float64(ev.Position.Y))
	pt := geometry.Point2D{X: imgX, Y: imgY}

	if sc.dragVertex < 0 {
		sc.dragVertex = sc.nearestVertex(pt)
		if sc.dragVertex < 0 {
			return
		}
	}
	sc.state.MoveVertex(sc.imageID, sc.machine.SelectedID(), sc.dragVertex, pt)
}

// nearestVertex finds the selected polygon's vertex within pick range of
// an image-space point, or -1.
func (sc *SpheroidCanvas) nearestVertex(pt geometry.Point2D) int {
	r := sc.state.Segmentation(sc.imageID)
	if r == nil {
		return -1
	}
	p := r.Polygon(sc.machine.SelectedID())
	if p == nil {
		return -1
	}

	radius := vertexHitRadius / sc.view.Zoom()
	best, bestDist := -1, radius
	for i, v := range p.Points {
		if d := v.Distance(pt); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// insertPointOnSelected inserts a vertex into the selected polygon at the
// nearest edge. Reports whether a vertex was added.
func (sc *SpheroidCanvas) insertPointOnSelected(pt geometry.Point2D) bool {
	id := sc.machine.SelectedID()
	if id == "" {
		return false
	}
	r := sc.state.Segmentation(sc.imageID)
	if r == nil {
		return false
	}
	p := r.Polygon(id)
	if p == nil {
		return false
	}

	idx := nearestEdgeIndex(p.Points, pt)
	if idx < 0 {
		return false
	}
	return sc.state.InsertVertex(sc.imageID, id, idx+1, pt) == nil
}

// handleSliceClick collects two cut endpoints, then slices the selected
// polygon.
func (sc *SpheroidCanvas) handleSliceClick(pt geometry.Point2D) {
	if sc.machine.SelectedID() == "" {
		if hit := sc.hitPolygon(pt); hit != "" {
			sc.machine.HandlePolygonClick(hit)
		}
		sc.Refresh()
		return
	}

	sc.slicePoints = append(sc.slicePoints, pt)
	if len(sc.slicePoints) < 2 {
		sc.Refresh()
		return
	}

	a, b := sc.slicePoints[0], sc.slicePoints[1]
	sc.slicePoints = nil
	if leftID, _, err := sc.state.SlicePolygon(sc.imageID, sc.machine.SelectedID(), a, b); err == nil {
		sc.machine.HandlePolygonClick(leftID)
	}
	sc.Refresh()
}

// hitPolygon returns the topmost polygon containing the image-space point.
// Holes sit inside their parent outline, so internal polygons win the hit.
func (sc *SpheroidCanvas) hitPolygon(pt geometry.Point2D) string {
	r := sc.state.Segmentation(sc.imageID)
	if r == nil {
		return ""
	}
	external := ""
	// Later polygons draw on top, so scan back to front.
	for i := len(r.Polygons) - 1; i >= 0; i-- {
		p := r.Polygons[i]
		if !p.Contains(pt) {
			continue
		}
		if p.Kind == segmentation.KindInternal {
			return p.ID
		}
		if external == "" {
			external = p.ID
		}
	}
	return external
}

func (sc *SpheroidCanvas) resetDrafts() {
	sc.draftPoints = nil
	sc.slicePoints = nil
	sc.dragVertex = -1
}

// nearestEdgeIndex returns the index of the ring edge closest to pt.
func nearestEdgeIndex(points []geometry.Point2D, pt geometry.Point2D) int {
	if len(points) < 2 {
		return -1
	}
	best, bestDist := -1, 0.0
	for i := range points {
		a := points[i]
		b := points[(i+1)%len(points)]
		d := pointToSegment(pt, a, b)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// pointToSegment is the distance from p to the segment ab.
func pointToSegment(p, a, b geometry.Point2D) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Distance(a.Add(ab.Scale(t)))
}
