package display

import (
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

// leftRight is a w x 1 image, red on the left half and blue on the right.
func leftRight(w int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, 1))
	for x := 0; x < w; x++ {
		if x < w/2 {
			img.SetRGBA(x, 0, red)
		} else {
			img.SetRGBA(x, 0, blue)
		}
	}
	return img
}

func TestMirror(t *testing.T) {
	src := leftRight(4)
	dst := image.NewRGBA(src.Bounds())

	require.True(t, Mirror(dst, src))
	assert.Equal(t, blue, dst.RGBAAt(0, 0))
	assert.Equal(t, blue, dst.RGBAAt(1, 0))
	assert.Equal(t, red, dst.RGBAAt(2, 0))
	assert.Equal(t, red, dst.RGBAAt(3, 0))

	assert.False(t, Mirror(image.NewRGBA(image.Rect(0, 0, 3, 1)), src))
}

func TestMirrorOddWidth(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 1, red)
	src.SetRGBA(1, 1, blue)
	dst := image.NewRGBA(src.Bounds())

	require.True(t, Mirror(dst, src))
	assert.Equal(t, red, dst.RGBAAt(2, 1))
	assert.Equal(t, blue, dst.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(0, 1))
}

func newPresenter(mirrored bool) *Presenter {
	logger, _ := logtest.NewNullLogger()
	return NewPresenter(settings.New(mirrored, 1), fyne.NewSize(64, 48), logger)
}

func TestPresenterShowsCopy(t *testing.T) {
	test.NewApp()
	p := newPresenter(false)

	composite := leftRight(4)
	p.Present(composite)

	shown, ok := p.View().Image.(*image.RGBA)
	require.True(t, ok)
	assert.Nil(t, p.View().Resource)
	assert.Equal(t, composite.Pix, shown.Pix)

	composite.SetRGBA(0, 0, blue)
	assert.Equal(t, red, shown.RGBAAt(0, 0), "display buffer is not the composite")
}

func TestPresenterMirrorsOnlyTheDisplay(t *testing.T) {
	test.NewApp()
	p := newPresenter(true)

	composite := leftRight(4)
	original := append([]uint8{}, composite.Pix...)
	p.Present(composite)

	shown := p.View().Image.(*image.RGBA)
	assert.Equal(t, blue, shown.RGBAAt(0, 0))
	assert.Equal(t, red, shown.RGBAAt(3, 0))
	assert.Equal(t, original, composite.Pix, "composite must not be flipped")
}

func TestPresenterFollowsMirrorSetting(t *testing.T) {
	test.NewApp()
	s := settings.New(false, 1)
	logger, _ := logtest.NewNullLogger()
	p := NewPresenter(s, fyne.NewSize(64, 48), logger)

	p.Present(leftRight(2))
	assert.Equal(t, red, p.View().Image.(*image.RGBA).RGBAAt(0, 0))

	s.SetMirrored(true)
	p.Present(leftRight(2))
	assert.Equal(t, blue, p.View().Image.(*image.RGBA).RGBAAt(0, 0))
}

func TestPresenterAlternatesBuffers(t *testing.T) {
	test.NewApp()
	p := newPresenter(false)

	p.Present(leftRight(2))
	first := p.View().Image
	p.Present(leftRight(2))
	second := p.View().Image
	p.Present(leftRight(2))

	assert.NotSame(t, first, second)
	assert.Same(t, first, p.View().Image)
}

func TestPresenterBlank(t *testing.T) {
	test.NewApp()
	p := newPresenter(false)

	p.Present(leftRight(2))
	p.Blank()

	assert.Nil(t, p.View().Image)
	assert.NotNil(t, p.View().Resource)
}

func TestSchedulerRunsOnTickOnly(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	s := NewAnimationScheduler(logger)

	var calls atomic.Int32
	s.RequestFrame(func() { calls.Add(1) })
	assert.Equal(t, int32(0), calls.Load(), "never called synchronously")

	require.True(t, s.Fire())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.False(t, s.Fire(), "callback runs once")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchedulerKeepsEveryRequest(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	s := NewAnimationScheduler(logger)

	order := make(chan int, 2)
	s.RequestFrame(func() { order <- 1 })
	s.RequestFrame(func() { order <- 2 })

	require.True(t, s.Fire())
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}

func TestMirrorMatchesPixelReversal(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 7, 3))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	dst := image.NewRGBA(src.Bounds())

	require.True(t, Mirror(dst, src))
	for y := 0; y < 3; y++ {
		for x := 0; x < 7; x++ {
			assert.Equal(t, src.RGBAAt(6-x, y), dst.RGBAAt(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestMirrorOffsetBounds(t *testing.T) {
	src := leftRight(4)
	dst := image.NewRGBA(image.Rect(10, 5, 14, 6))

	require.True(t, Mirror(dst, src))
	assert.Equal(t, blue, dst.RGBAAt(10, 5))
	assert.Equal(t, red, dst.RGBAAt(13, 5))
}
