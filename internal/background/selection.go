// Package background resolves the user selected background into something the compositor can
// draw straight into the render target.
package background

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
)

type Kind int8

const (
	None  Kind = 0
	Color Kind = 1
	Image Kind = 2
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Color:
		return "color"
	case Image:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int8(k))
	}
}

// ParseKind accepts the names used on the command line and in the UI.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "none", "None":
		return None, nil
	case "color", "Color":
		return Color, nil
	case "image", "Image":
		return Image, nil
	default:
		return None, errors.Errorf("unknown background '%s'", s)
	}
}

// DefaultColor is the flat fill used when nothing else was picked.
var DefaultColor = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}

// Selection is the tagged variant None | Color(c) | Image(bitmap).
type Selection struct {
	kind   Kind
	color  color.RGBA
	bitmap *bitmap
}

func (s Selection) Kind() Kind        { return s.kind }
func (s Selection) Color() color.RGBA { return s.color }

// Bitmap is the decoded image, nil unless Kind is Image.
func (s Selection) Bitmap() image.Image {
	if s.bitmap == nil {
		return nil
	}
	return s.bitmap.src
}

// Drawable is the resolved background for one render target size.
type Drawable struct {
	Kind  Kind
	Fill  color.RGBA
	Image image.Image
}
