package segmentation

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Downscale shrinks frame to the internal resolution the model runs at.
func Downscale(frame image.Image, r Resolution) image.Image {
	scale := r.Scale()
	if scale >= 1.0 {
		return frame
	}

	size := frame.Bounds().Size()
	w := uint(float64(size.X) * scale)
	h := uint(float64(size.Y) * scale)
	if w == 0 || h == 0 {
		return frame
	}

	return resize.Resize(w, h, frame, resize.Bilinear)
}

// MaskFromProbabilities thresholds a row-major w x h person-probability map into a mask.
func MaskFromProbabilities(probs []float32, w, h int, threshold float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	thr := float32(threshold)

	for y := 0; y < h; y++ {
		row := probs[y*w : (y+1)*w]
		for x, p := range row {
			if p > thr {
				mask.Pix[y*mask.Stride+x] = 0xff
			}
		}
	}
	return mask
}

// FitMask stretches mask over a w x h frame without introducing partial alpha.
func FitMask(mask *image.Alpha, w, h int) *image.Alpha {
	if mask.Bounds() == image.Rect(0, 0, w, h) {
		return mask
	}

	fitted := image.NewAlpha(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(fitted, fitted.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	return fitted
}

// Coverage is the fraction of person pixels in mask.
func Coverage(mask *image.Alpha) float64 {
	b := mask.Bounds()
	if b.Empty() {
		return 0
	}

	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.AlphaAt(x, y).A != 0 {
				n++
			}
		}
	}
	return float64(n) / float64(b.Dx()*b.Dy())
}
