// Package display shows finished composites in a fyne window and drives the render loop
// from the display refresh.
package display

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
)

// Presenter copies each composite into a display buffer and hands it to a canvas.Image.
// Mirroring happens here only, so neither the composite nor the segmentation input is
// ever flipped.
type Presenter struct {
	logger   logrus.FieldLogger
	settings *settings.Settings

	mu sync.Mutex
	// The canvas may still be painting the previous buffer while the next one is filled.
	buffers [2]*image.RGBA
	next    int
	view    *canvas.Image
}

func NewPresenter(s *settings.Settings, minSize fyne.Size, logger logrus.FieldLogger) *Presenter {
	view := canvas.NewImageFromResource(theme.MediaVideoIcon())
	view.FillMode = canvas.ImageFillContain
	view.SetMinSize(minSize)

	return &Presenter{
		logger:   logger.WithField("component", "presenter"),
		settings: s,
		view:     view,
	}
}

// View is the canvas object to place in the window.
func (p *Presenter) View() *canvas.Image {
	return p.view
}

func (p *Presenter) Present(dst *image.RGBA) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := p.buffers[p.next]
	if buf == nil || buf.Bounds() != dst.Bounds() {
		p.logger.Debugf("Allocating %dx%d display buffer.", dst.Bounds().Dx(), dst.Bounds().Dy())
		buf = image.NewRGBA(dst.Bounds())
		p.buffers[p.next] = buf
	}
	p.next = 1 - p.next

	if p.settings.Mirrored() {
		Mirror(buf, dst)
	} else {
		copy(buf.Pix, dst.Pix)
	}

	p.view.Resource = nil
	p.view.Image = buf
	p.view.Refresh()
}

// Blank swaps the last frame for the no-signal icon, e.g. once the camera is stopped.
func (p *Presenter) Blank() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.view.Image = nil
	p.view.Resource = theme.MediaVideoIcon()
	p.view.Refresh()
}
