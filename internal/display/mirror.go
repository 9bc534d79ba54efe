package display

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Mirror copies src into dst flipped around the vertical axis. Both images must have the
// same size; Mirror reports false and leaves dst alone otherwise.
func Mirror(dst, src *image.RGBA) bool {
	sb, db := src.Bounds(), dst.Bounds()
	if db.Size() != sb.Size() {
		return false
	}

	// x' = -x + (db.Min.X + sb.Min.X + width), y' = y + (db.Min.Y - sb.Min.Y)
	flip := f64.Aff3{
		-1, 0, float64(db.Min.X + sb.Min.X + sb.Dx()),
		0, 1, float64(db.Min.Y - sb.Min.Y),
	}
	draw.NearestNeighbor.Transform(dst, flip, src, sb, draw.Src, nil)
	return true
}
