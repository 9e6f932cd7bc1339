// Package viewport owns the zoom/offset transform between screen and image
// coordinate space, and the bounds that keep the image on screen.
package viewport

import (
	"math"
	"sync"

	"spheroid-editor/pkg/geometry"
)

const (
	// MinZoom and MaxZoom bound the zoom level.
	MinZoom = 0.1
	MaxZoom = 10.0

	// zoomStep is the factor applied by the explicit zoom controls.
	zoomStep = 1.2

	// wheelStep is the factor applied per wheel tick (5%).
	wheelStep = 1.05

	// minVisibleFraction is the share of the scaled image that must remain
	// inside the container on each axis.
	minVisibleFraction = 0.25

	// fitFraction leaves a margin when fitting the image to the container.
	fitFraction = 0.8
)

// Viewport maps image pixel space onto the visible container. The mapping is
//
//	imageX = screenX/zoom - offsetX
//
// and its inverse. The transform is read and written from both the UI event
// loop and the canvas frame-flush goroutine, so all state is guarded by a
// mutex. The OnChange callback always runs outside the lock.
type Viewport struct {
	mu      sync.Mutex
	zoom    float64
	offsetX float64
	offsetY float64

	containerW float64
	containerH float64
	imageW     float64
	imageH     float64

	onChange func()
}

// New creates a viewport at zoom 1.0 with no offset.
func New() *Viewport {
	return &Viewport{zoom: 1.0}
}

// OnChange sets a callback invoked after every transform mutation.
func (v *Viewport) OnChange(callback func()) {
	v.mu.Lock()
	v.onChange = callback
	v.mu.Unlock()
}

// Zoom returns the current zoom level.
func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Offset returns the current offset in image coordinates.
func (v *Viewport) Offset() (x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offsetX, v.offsetY
}

// ContainerSize returns the visible container dimensions.
func (v *Viewport) ContainerSize() geometry.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return geometry.Size{Width: v.containerW, Height: v.containerH}
}

// SetContainerSize updates the visible container dimensions.
func (v *Viewport) SetContainerSize(w, h float64) {
	v.mu.Lock()
	v.containerW = w
	v.containerH = h
	changed, cb := v.applyLocked(v.offsetX, v.offsetY, v.zoom)
	v.mu.Unlock()
	notify(changed, cb)
}

// SetImageSize updates the displayed image dimensions.
func (v *Viewport) SetImageSize(w, h float64) {
	v.mu.Lock()
	v.imageW = w
	v.imageH = h
	changed, cb := v.applyLocked(v.offsetX, v.offsetY, v.zoom)
	v.mu.Unlock()
	notify(changed, cb)
}

// ScreenToImage converts screen coordinates to image coordinates.
func (v *Viewport) ScreenToImage(screenX, screenY float64) (imgX, imgY float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	imgX = screenX/v.zoom - v.offsetX
	imgY = screenY/v.zoom - v.offsetY
	return
}

// ImageToScreen converts image coordinates to screen coordinates.
func (v *Viewport) ImageToScreen(imgX, imgY float64) (screenX, screenY float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	screenX = (imgX + v.offsetX) * v.zoom
	screenY = (imgY + v.offsetY) * v.zoom
	return
}

// ZoomIn increases zoom by one step, keeping the image point under the
// viewport center fixed.
func (v *Viewport) ZoomIn() {
	v.mu.Lock()
	changed, cb := v.zoomAboutLocked(v.zoom*zoomStep, v.containerW/2, v.containerH/2)
	v.mu.Unlock()
	notify(changed, cb)
}

// ZoomOut decreases zoom by one step, keeping the image point under the
// viewport center fixed.
func (v *Viewport) ZoomOut() {
	v.mu.Lock()
	changed, cb := v.zoomAboutLocked(v.zoom/zoomStep, v.containerW/2, v.containerH/2)
	v.mu.Unlock()
	notify(changed, cb)
}

// HandleWheel applies a wheel zoom of 5% about the cursor position, so the
// image point under the cursor stays fixed. deltaY < 0 zooms in.
func (v *Viewport) HandleWheel(deltaY, screenX, screenY float64) {
	if deltaY == 0 {
		return
	}
	v.mu.Lock()
	target := v.zoom / wheelStep
	if deltaY < 0 {
		target = v.zoom * wheelStep
	}
	changed, cb := v.zoomAboutLocked(target, screenX, screenY)
	v.mu.Unlock()
	notify(changed, cb)
}

// Pan shifts the offset by a screen-space delta.
func (v *Viewport) Pan(screenDX, screenDY float64) {
	v.mu.Lock()
	changed, cb := v.applyLocked(v.offsetX+screenDX/v.zoom, v.offsetY+screenDY/v.zoom, v.zoom)
	v.mu.Unlock()
	notify(changed, cb)
}

// CenterOn fits the image into 80% of the container on the constraining
// axis and centers it.
func (v *Viewport) CenterOn(imageW, imageH float64) {
	v.mu.Lock()
	v.imageW = imageW
	v.imageH = imageH
	if imageW <= 0 || imageH <= 0 || v.containerW <= 0 || v.containerH <= 0 {
		v.mu.Unlock()
		return
	}

	fitX := v.containerW / imageW
	fitY := v.containerH / imageH
	zoom := clampZoom(math.Min(fitX, fitY) * fitFraction)

	offsetX := v.containerW/(2*zoom) - imageW/2
	offsetY := v.containerH/(2*zoom) - imageH/2
	changed, cb := v.applyLocked(offsetX, offsetY, zoom)
	v.mu.Unlock()
	notify(changed, cb)
}

// Reset restores zoom 1.0 with no offset.
func (v *Viewport) Reset() {
	v.mu.Lock()
	changed, cb := v.applyLocked(0, 0, 1.0)
	v.mu.Unlock()
	notify(changed, cb)
}

// Constrain clamps an offset so that at least minVisibleFraction of the
// scaled image bounding box stays inside the container on each axis. The
// zoom argument is clamped to [MinZoom, MaxZoom] before use.
func (v *Viewport) Constrain(offsetX, offsetY, zoom float64) (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	zoom = clampZoom(zoom)
	offsetX = constrainAxis(offsetX, v.imageW, v.containerW, zoom)
	offsetY = constrainAxis(offsetY, v.imageH, v.containerH, zoom)
	return offsetX, offsetY
}

// zoomAboutLocked changes zoom while keeping the image point under the
// given screen position fixed. Caller holds mu.
func (v *Viewport) zoomAboutLocked(targetZoom, screenX, screenY float64) (bool, func()) {
	zoom := clampZoom(targetZoom)
	if zoom == v.zoom {
		return false, nil
	}

	// imagePoint = screen/oldZoom - oldOffset must equal
	// screen/newZoom - newOffset.
	offsetX := screenX/zoom - (screenX/v.zoom - v.offsetX)
	offsetY := screenY/zoom - (screenY/v.zoom - v.offsetY)
	return v.applyLocked(offsetX, offsetY, zoom)
}

// applyLocked constrains and commits a transform. Caller holds mu; the
// returned callback is invoked by the caller after unlocking.
func (v *Viewport) applyLocked(offsetX, offsetY, zoom float64) (bool, func()) {
	zoom = clampZoom(zoom)
	offsetX = constrainAxis(offsetX, v.imageW, v.containerW, zoom)
	offsetY = constrainAxis(offsetY, v.imageH, v.containerH, zoom)

	changed := zoom != v.zoom || offsetX != v.offsetX || offsetY != v.offsetY
	v.zoom = zoom
	v.offsetX = offsetX
	v.offsetY = offsetY
	return changed, v.onChange
}

func notify(changed bool, cb func()) {
	if changed && cb != nil {
		cb()
	}
}

// constrainAxis clamps a single offset axis. Offsets are in image units;
// the image spans screen positions [offset*zoom, (size+offset)*zoom].
func constrainAxis(offset, imageSize, containerSize, zoom float64) float64 {
	if imageSize <= 0 || containerSize <= 0 {
		return offset
	}

	// Keep the trailing edge at least 25% into view...
	lo := -imageSize * (1 - minVisibleFraction)
	// ...and the leading edge no further right than 75% off screen.
	hi := containerSize/zoom - imageSize*minVisibleFraction

	if offset < lo {
		return lo
	}
	if offset > hi {
		return hi
	}
	return offset
}

func clampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
