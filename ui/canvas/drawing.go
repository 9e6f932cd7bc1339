// Package canvas drawing primitives for the spheroid editing canvas.
package canvas

import (
	"image"
	"image/color"

	"spheroid-editor/internal/segmentation"
	"spheroid-editor/internal/selection"
	"spheroid-editor/pkg/colorutil"
	"spheroid-editor/pkg/geometry"
)

// draw renders the canvas raster: the microscopy image under the viewport
// transform, then polygon overlays, drafts, and vertex handles.
func (sc *SpheroidCanvas) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(output, color.RGBA{R: 24, G: 24, B: 27, A: 255})

	rec := sc.state.Image(sc.imageID)
	if rec == nil || rec.Img == nil {
		return output
	}

	sc.drawImage(output, rec.Img)

	if r := sc.state.Segmentation(sc.imageID); r != nil {
		size := rec.Size()
		for _, p := range r.Polygons {
			sc.drawPolygon(output, size, p, p.ID == sc.machine.SelectedID())
		}
	}

	sc.drawDrafts(output)
	return output
}

// drawImage samples the source image through the inverse viewport
// transform, nearest-neighbor.
func (sc *SpheroidCanvas) drawImage(output *image.RGBA, src image.Image) {
	bounds := output.Bounds()
	srcBounds := src.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			imgX, imgY := sc.view.ScreenToImage(float64(x), float64(y))
			sx := srcBounds.Min.X + int(imgX)
			sy := srcBounds.Min.Y + int(imgY)
			if imgX < 0 || imgY < 0 || sx >= srcBounds.Max.X || sy >= srcBounds.Max.Y {
				continue
			}
			output.Set(x, y, src.At(sx, sy))
		}
	}
}

// drawPolygon renders one outline, simplified when zoomed out far enough
// that the dropped vertices are sub-pixel. imgSize is the record size the
// caller already resolved for this frame.
func (sc *SpheroidCanvas) drawPolygon(output *image.RGBA, imgSize geometry.Size, p segmentation.Polygon, selected bool) {
	points := p.Points
	if zoom := sc.view.Zoom(); zoom < 1.0 {
		tol := geometry.ToleranceFor(imgSize.Width, imgSize.Height) / zoom
		points = geometry.Simplify(points, tol)
	}
	if len(points) < 2 {
		return
	}

	col := colorutil.Green
	if p.Kind == segmentation.KindInternal {
		col = colorutil.DimGray
	}
	thickness := 1
	if selected {
		col = colorutil.Yellow
		thickness = 2

		// Soft halo under the highlight so it stands out on busy images.
		halo := colorutil.WithAlpha(colorutil.Yellow, 90)
		for i := range points {
			a := points[i]
			b := points[(i+1)%len(points)]
			sc.drawSegmentSoft(output, a, b, halo, 5)
		}
	}

	for i := range points {
		a := points[i]
		b := points[(i+1)%len(points)]
		sc.drawSegment(output, a, b, col, thickness)
	}

	if selected && sc.machine.Mode() == selection.ModeEditVertices {
		for _, v := range p.Points {
			sx, sy := sc.view.ImageToScreen(v.X, v.Y)
			drawHandle(output, int(sx), int(sy), colorutil.White)
		}
	}
}

// drawDrafts renders the in-progress polygon and slice line.
func (sc *SpheroidCanvas) drawDrafts(output *image.RGBA) {
	if len(sc.draftPoints) > 0 {
		for i := 0; i+1 < len(sc.draftPoints); i++ {
			sc.drawSegment(output, sc.draftPoints[i], sc.draftPoints[i+1], colorutil.Orange, 1)
		}
		for _, v := range sc.draftPoints {
			sx, sy := sc.view.ImageToScreen(v.X, v.Y)
			drawHandle(output, int(sx), int(sy), colorutil.Orange)
		}
	}

	for _, v := range sc.slicePoints {
		sx, sy := sc.view.ImageToScreen(v.X, v.Y)
		drawHandle(output, int(sx), int(sy), colorutil.Red)
	}
}

// drawSegmentSoft draws a translucent widened line between two image-space
// points, blending col over the existing pixels by its alpha.
func (sc *SpheroidCanvas) drawSegmentSoft(output *image.RGBA, a, b geometry.Point2D, col color.RGBA, thickness int) {
	x1, y1 := sc.view.ImageToScreen(a.X, a.Y)
	x2, y2 := sc.view.ImageToScreen(b.X, b.Y)

	opacity := float64(col.A) / 255
	half := thickness / 2
	plot := func(x, y int) {
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				blendPixel(output, x+dx, y+dy, col, opacity)
			}
		}
	}
	walkLine(int(x1), int(y1), int(x2), int(y2), plot)
}

// drawSegment draws a line between two image-space points.
func (sc *SpheroidCanvas) drawSegment(output *image.RGBA, a, b geometry.Point2D, col color.RGBA, thickness int) {
	x1, y1 := sc.view.ImageToScreen(a.X, a.Y)
	x2, y2 := sc.view.ImageToScreen(b.X, b.Y)
	drawLine(output, int(x1), int(y1), int(x2), int(y2), col, thickness)
}

// drawLine draws a Bresenham line with optional thickness.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	walkLine(x1, y1, x2, y2, func(x, y int) {
		setThick(output, x, y, col, thickness)
	})
}

// walkLine traces a Bresenham line, calling plot for every pixel.
func walkLine(x1, y1, x2, y2 int, plot func(x, y int)) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	x, y := x1, y1
	for {
		plot(x, y)
		if x == x2 && y == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// drawHandle draws a small filled square with a dark border.
func drawHandle(output *image.RGBA, cx, cy int, col color.RGBA) {
	const r = 3
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := col
			if dx == -r || dx == r || dy == -r || dy == r {
				c = colorutil.Black
			}
			setPixel(output, cx+dx, cy+dy, c)
		}
	}
}

func setThick(output *image.RGBA, x, y int, col color.RGBA, thickness int) {
	if thickness <= 1 {
		setPixel(output, x, y, col)
		return
	}
	half := thickness / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			setPixel(output, x+dx, y+dy, col)
		}
	}
}

func blendPixel(output *image.RGBA, x, y int, col color.RGBA, opacity float64) {
	bounds := output.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	output.SetRGBA(x, y, colorutil.Blend(output.RGBAAt(x, y), col, opacity))
}

func setPixel(output *image.RGBA, x, y int, col color.RGBA) {
	bounds := output.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	output.SetRGBA(x, y, col)
}

func fill(output *image.RGBA, col color.RGBA) {
	bounds := output.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			output.SetRGBA(x, y, col)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
