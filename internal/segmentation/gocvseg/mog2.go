package gocvseg

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
)

// MOG2 separates moving foreground from a learned static background. It needs no model file,
// but a person who keeps still fades into the background over time.
type MOG2 struct {
	logger logrus.FieldLogger
	p      MOG2Parameters

	mu        sync.Mutex
	mog2      gocv.BackgroundSubtractorMOG2
	imgDelta  gocv.Mat
	imgThresh gocv.Mat
	imgFilled gocv.Mat
	kernel    gocv.Mat
	closed    bool
}

var _ segmentation.Segmenter = &MOG2{}

type MOG2Parameters struct {
	// OpsOnRawThreshold run on the thresholded mask (see AllImageOps).
	OpsOnRawThreshold string
	// MinArea drops foreground blobs smaller than this many full resolution pixels; the
	// remaining blobs are filled solid. Zero keeps the raw mask.
	MinArea float64
	// PostContourOps run on the filled mask.
	PostContourOps string
}

func DefaultMOG2Parameters() MOG2Parameters {
	return MOG2Parameters{
		OpsOnRawThreshold: "ed",
		MinArea:           5000.0,
		PostContourOps:    "",
	}
}

func NewMOG2(p MOG2Parameters, logger logrus.FieldLogger) *MOG2 {
	return &MOG2{
		logger:    logger.WithField("component", "mog2"),
		p:         p,
		mog2:      gocv.NewBackgroundSubtractorMOG2(),
		imgDelta:  gocv.NewMat(),
		imgThresh: gocv.NewMat(),
		imgFilled: gocv.NewMat(),
		kernel:    gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

func (m *MOG2) Segment(ctx context.Context, frame image.Image, cfg segmentation.Config) (*segmentation.Result, error) {
	if err := segmentation.CheckFrame(frame); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.ImageToMatRGB(segmentation.Downscale(frame, cfg.InternalResolution))
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert frame")
	}
	defer img.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("segmenter closed")
	}

	m.mog2.Apply(img, &m.imgDelta)
	if m.imgDelta.Empty() {
		return nil, errors.New("background subtractor produced no mask")
	}

	// MOG2 marks shadows at 127; the threshold decides whether they count as person.
	gocv.Threshold(m.imgDelta, &m.imgThresh, float32(cfg.Threshold*255), 255, gocv.ThresholdBinary)
	runOps(m.p.OpsOnRawThreshold, &m.imgThresh, &m.kernel)

	out := &m.imgThresh
	if m.p.MinArea > 0 {
		scale := cfg.InternalResolution.Scale()
		fillLargeContours(m.imgThresh, &m.imgFilled, m.p.MinArea*scale*scale)
		runOps(m.p.PostContourOps, &m.imgFilled, &m.kernel)
		out = &m.imgFilled
	}

	raw, err := out.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mask")
	}

	gray, ok := raw.(*image.Gray)
	if !ok {
		return nil, errors.Errorf("unexpected mask image type %T", raw)
	}
	mask := image.NewAlpha(gray.Bounds())
	copy(mask.Pix, gray.Pix)

	size := frame.Bounds().Size()
	return &segmentation.Result{Mask: segmentation.FitMask(mask, size.X, size.Y)}, nil
}

func (m *MOG2) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	return flow.FlattenErrors(
		errors.Wrap(m.mog2.Close(), "background subtractor teardown error"),
		errors.Wrap(m.kernel.Close(), "image kernel teardown error"),
		errors.Wrap(m.imgDelta.Close(), "imgDelta buffer teardown error"),
		errors.Wrap(m.imgThresh.Close(), "imgThresh buffer teardown error"),
		errors.Wrap(m.imgFilled.Close(), "imgFilled buffer teardown error"),
	)
}
