package gocvseg

import (
	"image/color"

	"gocv.io/x/gocv"
)

var maskWhite = color.RGBA{0xff, 0xff, 0xff, 0xff}

// fillLargeContours redraws mask into dst keeping only the external contours of at least
// minArea pixels, filled solid. Specks vanish and holes inside the silhouette close.
func fillLargeContours(mask gocv.Mat, dst *gocv.Mat, minArea float64) {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), mask.Rows(), mask.Cols(), mask.Type())
	blank.CopyTo(dst)
	blank.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < minArea {
			continue
		}

		gocv.DrawContours(dst, contours, i, maskWhite, -1)
	}
}
