package background

import (
	"context"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Provider holds the current Selection. Selections are last-write-wins: an image decode that
// completes after a newer selection is discarded.
type Provider struct {
	logger logrus.FieldLogger
	decode func([]byte) (*bitmap, error)

	mu       sync.RWMutex
	current  Selection
	revision uint64
	pending  int
}

func NewProvider(logger logrus.FieldLogger) *Provider {
	return &Provider{
		logger:  logger.WithField("component", "background"),
		decode:  decodeBitmap,
		current: Selection{kind: None, color: DefaultColor},
	}
}

func (p *Provider) Selection() Selection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current
}

// Pending reports the number of image decodes still running.
func (p *Provider) Pending() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.pending
}

func (p *Provider) SelectNone() {
	p.set(Selection{kind: None, color: p.Selection().color})
}

func (p *Provider) SelectColor(c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	p.set(Selection{kind: Color, color: rgba})
}

// SelectImage decodes raw asynchronously. The previous selection is served until the decode
// completes. The returned channel yields exactly one value: nil on success, a *DecodeError,
// ErrSuperseded, or the context error.
func (p *Provider) SelectImage(ctx context.Context, raw []byte) <-chan error {
	p.mu.Lock()
	p.revision++
	rev := p.revision
	p.pending++
	p.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- p.decodeAndSwap(ctx, rev, raw)
	}()
	return result
}

// LoadImageFile reads path and selects it, waiting for the decode.
func (p *Provider) LoadImageFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read background image '%s'", path)
	}

	return <-p.SelectImage(ctx, raw)
}

// Current resolves the selection for a render target of the given size.
func (p *Provider) Current(size image.Point) Drawable {
	return Resolve(p.Selection(), size)
}

// Resolve turns a selection snapshot into a Drawable for a render target of the given size.
func Resolve(s Selection, size image.Point) Drawable {
	switch s.kind {
	case Color:
		return Drawable{Kind: Color, Fill: s.color}
	case Image:
		if s.bitmap == nil || size.X <= 0 || size.Y <= 0 {
			return Drawable{Kind: None}
		}
		return Drawable{Kind: Image, Image: s.bitmap.scaledTo(size)}
	default:
		return Drawable{Kind: None}
	}
}

func (p *Provider) decodeAndSwap(ctx context.Context, rev uint64, raw []byte) error {
	logger := p.logger.WithField("revision", rev)

	bm, err := p.decode(raw)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--

	if err != nil {
		logger.WithError(err).Warnf("Background image rejected; keeping %s.", p.current.kind)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.revision != rev {
		logger.Debugf("Background image decoded after a newer selection; dropped.")
		return ErrSuperseded
	}

	p.current = Selection{kind: Image, color: p.current.color, bitmap: bm}
	logger.Infof("Background image %dx%d selected.", bm.src.Bounds().Dx(), bm.src.Bounds().Dy())
	return nil
}

func (p *Provider) set(s Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.revision++
	p.current = s
	p.logger.WithField("revision", p.revision).Debugf("Background set to %s.", s.kind)
}
