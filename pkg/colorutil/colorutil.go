// Package colorutil provides shared color utilities for the segmentation editor.
package colorutil

import (
	"image/color"
)

// Overlay colors used by the canvas when drawing segmentation polygons.
var (
	Black   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red     = color.RGBA{R: 239, G: 68, B: 68, A: 255}
	Blue    = color.RGBA{R: 59, G: 130, B: 246, A: 255}
	Yellow  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Green   = color.RGBA{R: 34, G: 197, B: 94, A: 255}
	Orange  = color.RGBA{R: 249, G: 115, B: 22, A: 255}
	DimGray = color.RGBA{R: 107, G: 114, B: 128, A: 255}
)

// WithAlpha returns the color with its alpha channel replaced.
func WithAlpha(c color.RGBA, a uint8) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: a}
}

// Blend mixes src over dst using the given opacity in [0, 1].
func Blend(dst, src color.RGBA, opacity float64) color.RGBA {
	if opacity <= 0 {
		return dst
	}
	if opacity >= 1 {
		return src
	}
	inv := 1 - opacity
	return color.RGBA{
		R: uint8(float64(src.R)*opacity + float64(dst.R)*inv),
		G: uint8(float64(src.G)*opacity + float64(dst.G)*inv),
		B: uint8(float64(src.B)*opacity + float64(dst.B)*inv),
		A: 255,
	}
}
