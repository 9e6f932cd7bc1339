package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// LOD selects the thumbnail detail level.
type LOD int

const (
	LODLow LOD = iota
	LODMedium
	LODHigh
)

func (l LOD) String() string {
	switch l {
	case LODLow:
		return "low"
	case LODMedium:
		return "medium"
	case LODHigh:
		return "high"
	default:
		return "low"
	}
}

// LongEdge returns the target long-edge pixel size for the level.
func (l LOD) LongEdge() int {
	switch l {
	case LODMedium:
		return 256
	case LODHigh:
		return 512
	default:
		return 128
	}
}

// Render downscales src so its long edge matches the detail level and
// encodes the result as PNG. Images already smaller than the target are
// encoded as-is.
func Render(src image.Image, lod LOD) ([]byte, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rendering thumbnail: empty source image")
	}

	target := lod.LongEdge()
	long := w
	if h > long {
		long = h
	}

	out := src
	if long > target {
		scale := float64(target) / float64(long)
		dw := int(float64(w)*scale + 0.5)
		dh := int(float64(h)*scale + 0.5)
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
