package compositor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture/capturetest"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	transparent = color.RGBA{}
)

// rowsMask marks the first n rows of a w x h frame as person.
func rowsMask(w, h, n int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < n; y++ {
		for x := 0; x < w; x++ {
			mask.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
	return mask
}

func TestCompositeNoBackground(t *testing.T) {
	frame := capturetest.Solid(10, 10, red)
	dst := capturetest.Solid(10, 10, color.RGBA{G: 255, A: 255})

	Composite(dst, frame, rowsMask(10, 10, 4), background.Drawable{Kind: background.None})

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if y < 4 {
				assert.Equal(t, red, dst.RGBAAt(x, y))
			} else {
				assert.Equal(t, transparent, dst.RGBAAt(x, y))
			}
		}
	}
}

func TestCompositeColorBackgroundWithoutPerson(t *testing.T) {
	frame := capturetest.Solid(8, 6, red)
	dst := image.NewRGBA(image.Rect(0, 0, 8, 6))

	Composite(dst, frame, rowsMask(8, 6, 0), background.Drawable{Kind: background.Color, Fill: blue})

	for i := 0; i < len(dst.Pix); i += 4 {
		assert.Equal(t, []uint8{0, 0, 255, 255}, dst.Pix[i:i+4])
	}
}

func TestCompositeImageBackground(t *testing.T) {
	frame := capturetest.Solid(4, 4, red)
	bg := capturetest.Solid(4, 4, blue)
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))

	Composite(dst, frame, rowsMask(4, 4, 1), background.Drawable{Kind: background.Image, Image: bg})

	assert.Equal(t, red, dst.RGBAAt(0, 0))
	assert.Equal(t, blue, dst.RGBAAt(0, 1))
	assert.Equal(t, blue, dst.RGBAAt(3, 3))
}

func TestCompositeWithoutMaskIsBackgroundOnly(t *testing.T) {
	frame := capturetest.Solid(2, 2, red)
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))

	Composite(dst, frame, nil, background.Drawable{Kind: background.Color, Fill: blue})

	assert.Equal(t, blue, dst.RGBAAt(1, 1))
}
