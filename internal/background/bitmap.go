package background

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// bitmap owns a decoded image and the copy scaled to the last requested target size.
type bitmap struct {
	src image.Image

	mu     sync.Mutex
	scaled *image.RGBA
}

func decodeBitmap(raw []byte) (*bitmap, error) {
	mime := mimetype.Detect(raw)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, &DecodeError{MIME: mime.String(), Err: errors.New("not an image")}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{MIME: mime.String(), Err: err}
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, &DecodeError{MIME: mime.String(), Err: errors.Errorf("empty %s image", format)}
	}

	return &bitmap{src: img}, nil
}

// scaledTo stretches the bitmap over a size.X x size.Y target. The result is cached until a
// different size is asked for.
func (b *bitmap) scaledTo(size image.Point) *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.scaled != nil && b.scaled.Bounds().Size() == size {
		return b.scaled
	}

	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), b.src, b.src.Bounds(), draw.Src, nil)
	b.scaled = dst
	return dst
}
