// Package gocvseg runs person segmentation through OpenCV.
package gocvseg

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
)

// DNN wraps a pretrained person segmentation network (ONNX, TensorFlow, ...) whose output is
// a single channel person probability map, e.g. a selfie segmentation model.
type DNN struct {
	logger logrus.FieldLogger
	p      DNNParameters

	mu     sync.Mutex
	net    gocv.Net
	closed bool
}

var _ segmentation.Segmenter = &DNN{}

type DNNParameters struct {
	ModelFile string
	// InputSize is the fixed input of the network. Zero feeds the internally downscaled frame
	// as is, for networks with dynamic input.
	InputSize image.Point
	// Scale is applied to pixel values before inference; 1/255 for [0, 1] inputs.
	Scale  float64
	SwapRB bool
}

func DefaultDNNParameters(modelFile string) DNNParameters {
	return DNNParameters{
		ModelFile: modelFile,
		InputSize: image.Pt(256, 256),
		Scale:     1.0 / 255.0,
		SwapRB:    false,
	}
}

// NewDNN loads the model; this is the slow part and is meant to run off the UI thread.
func NewDNN(p DNNParameters, logger logrus.FieldLogger) (*DNN, error) {
	net := gocv.ReadNet(p.ModelFile, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load segmentation model '%s'", p.ModelFile)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		_ = net.Close()
		return nil, errors.Wrap(err, "failed to select DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		_ = net.Close()
		return nil, errors.Wrap(err, "failed to select DNN target")
	}

	return &DNN{
		logger: logger.WithField("component", "dnn"),
		p:      p,
		net:    net,
	}, nil
}

func (d *DNN) Segment(ctx context.Context, frame image.Image, cfg segmentation.Config) (*segmentation.Result, error) {
	if err := segmentation.CheckFrame(frame); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	small := segmentation.Downscale(frame, cfg.InternalResolution)

	img, err := gocv.ImageToMatRGB(small)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert frame")
	}
	defer img.Close()

	inputSize := d.p.InputSize
	if inputSize.X <= 0 || inputSize.Y <= 0 {
		inputSize = small.Bounds().Size()
	}

	blob := gocv.BlobFromImage(img, d.p.Scale, inputSize, gocv.NewScalar(0, 0, 0, 0), d.p.SwapRB, false)
	defer blob.Close()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("segmenter closed")
	}
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	d.mu.Unlock()
	defer prob.Close()

	w, h, err := probabilityMapSize(prob.Size())
	if err != nil {
		return nil, err
	}

	probs, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model output")
	}
	if len(probs) < w*h {
		return nil, errors.Errorf("model output has %d values, expected %dx%d", len(probs), w, h)
	}

	mask := segmentation.MaskFromProbabilities(probs[:w*h], w, h, cfg.Threshold)
	size := frame.Bounds().Size()
	return &segmentation.Result{Mask: segmentation.FitMask(mask, size.X, size.Y)}, nil
}

func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	return errors.Wrap(d.net.Close(), "segmentation model teardown error")
}

// probabilityMapSize finds (w, h) in an NCHW (1x1xHxW) or NHWC (1xHxWx1) output shape.
func probabilityMapSize(dims []int) (w, h int, err error) {
	spatial := make([]int, 0, 2)
	for _, d := range dims {
		if d > 1 {
			spatial = append(spatial, d)
		}
	}

	if len(spatial) != 2 {
		return 0, 0, errors.Errorf("unexpected model output shape %v", dims)
	}
	return spatial[1], spatial[0], nil
}
