package compositor

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
)

// Composite renders one frame into dst: clear, background, then the frame through the
// person mask. A nil mask leaves the background only.
func Composite(dst *image.RGBA, frame image.Image, mask *image.Alpha, bg background.Drawable) {
	bounds := dst.Bounds()

	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)

	switch bg.Kind {
	case background.Image:
		draw.Draw(dst, bounds, bg.Image, bg.Image.Bounds().Min, draw.Src)
	case background.Color:
		draw.Draw(dst, bounds, image.NewUniform(bg.Fill), image.Point{}, draw.Src)
	}

	if mask == nil || frame == nil {
		return
	}

	draw.DrawMask(dst, bounds, frame, frame.Bounds().Min, mask, mask.Bounds().Min, draw.Over)
}
