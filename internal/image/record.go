// Package image provides microscopy image loading and per-image metadata.
package image

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"spheroid-editor/pkg/geometry"

	_ "golang.org/x/image/tiff"
)

// Record is one microscopy image in the workspace.
type Record struct {
	ID   string      // Stable id used across cache, status, and segmentation
	Path string      // Original file path
	Name string      // Display name, defaults to the file base name
	Img  image.Image // Loaded pixel data

	// MicronsPerPixel converts pixel measurements to physical units.
	// Zero when the source file carries no resolution metadata.
	MicronsPerPixel float64
}

// Load reads a microscopy image from disk. PNG, JPEG, and TIFF are
// supported; TIFF resolution metadata is used to derive the pixel scale.
func Load(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", filepath.Base(path), err)
	}

	rec := &Record{
		ID:   uuid.NewString(),
		Path: path,
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Img:  img,
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tiff" || ext == ".tif" {
		if mpp, err := extractTIFFPixelScale(path); err == nil {
			rec.MicronsPerPixel = mpp
		}
	}

	return rec, nil
}

// Width returns the image width in pixels.
func (r *Record) Width() int {
	if r.Img == nil {
		return 0
	}
	return r.Img.Bounds().Dx()
}

// Height returns the image height in pixels.
func (r *Record) Height() int {
	if r.Img == nil {
		return 0
	}
	return r.Img.Bounds().Dy()
}

// Size returns the image dimensions.
func (r *Record) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(r.Width()),
		Height: float64(r.Height()),
	}
}

// AreaMicrons converts a pixel area to square microns, or returns the
// input unchanged when no scale is known.
func (r *Record) AreaMicrons(pixelArea float64) float64 {
	if r.MicronsPerPixel == 0 {
		return pixelArea
	}
	return pixelArea * r.MicronsPerPixel * r.MicronsPerPixel
}

// extractTIFFPixelScale reads resolution tags from a TIFF header and
// converts them to microns per pixel.
func extractTIFFPixelScale(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 8)
	if _, err := file.Read(header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	if header[0] == 'I' && header[1] == 'I' {
		byteOrder = binary.LittleEndian
	} else if header[0] == 'M' && header[1] == 'M' {
		byteOrder = binary.BigEndian
	} else {
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := file.Seek(int64(ifdOffset), 0); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(file, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // inches unless stated otherwise

	for i := uint16(0); i < numEntries; i++ {
		entry := make([]byte, 12)
		if _, err := file.Read(entry); err != nil {
			return 0, err
		}

		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueOffset := byteOrder.Uint32(entry[8:12])

		switch tag {
		case 282: // XResolution
			if fieldType == 5 { // RATIONAL
				xRes = readTIFFRational(file, int64(valueOffset), byteOrder)
			}
		case 283: // YResolution
			if fieldType == 5 { // RATIONAL
				yRes = readTIFFRational(file, int64(valueOffset), byteOrder)
			}
		case 296: // ResolutionUnit
			if fieldType == 3 { // SHORT
				resUnit = uint16(valueOffset)
			}
		}
	}

	res := xRes
	if res == 0 {
		res = yRes
	}
	if res == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	// Resolution is pixels per unit; convert the unit to microns.
	unitMicrons := 25400.0 // inch
	if resUnit == 3 {
		unitMicrons = 10000.0 // centimeter
	}
	return unitMicrons / res, nil
}

// readTIFFRational reads a RATIONAL value at the given offset, preserving
// the current file position.
func readTIFFRational(file *os.File, offset int64, byteOrder binary.ByteOrder) float64 {
	pos, err := file.Seek(0, 1)
	if err != nil {
		return 0
	}
	defer file.Seek(pos, 0)

	if _, err := file.Seek(offset, 0); err != nil {
		return 0
	}

	buf := make([]byte, 8)
	if _, err := file.Read(buf); err != nil {
		return 0
	}

	numerator := byteOrder.Uint32(buf[0:4])
	denominator := byteOrder.Uint32(buf[4:8])
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
