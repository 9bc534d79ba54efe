package main

import (
	"image"
	"sync"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/compositor"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation/gocvseg"
)

type closableSegmenter interface {
	segmentation.Segmenter
	Close() error
}

func newSegmenter(args *CliArgs) (closableSegmenter, error) {
	switch args.Segmenter {
	case segmenterMOG2:
		return gocvseg.NewMOG2(gocvseg.MOG2Parameters{
			OpsOnRawThreshold: args.MaskOps,
			MinArea:           args.MinArea,
			PostContourOps:    args.PostContourOps,
		}, logger), nil

	default:
		p := gocvseg.DefaultDNNParameters(args.ModelFile)
		p.InputSize = image.Pt(args.modelInput[0], args.modelInput[1])

		dnn, err := gocvseg.NewDNN(p, logger)
		if err != nil {
			return nil, err
		}
		return dnn, nil
	}
}

// segmenterSlot owns the loaded segmenter so that whichever of the loader and the shutdown
// comes last closes it.
type segmenterSlot struct {
	mu     sync.Mutex
	seg    closableSegmenter
	closed bool
}

// Put stores seg. After Close it closes seg instead and reports false.
func (s *segmenterSlot) Put(seg closableSegmenter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if err := seg.Close(); err != nil {
			logger.WithError(err).Errorf("Failed to close late segmenter.")
		}
		return false
	}

	s.seg = seg
	return true
}

func (s *segmenterSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.seg == nil {
		return nil
	}
	return s.seg.Close()
}

// loadSegmenterAsync loads the model in the background and hands it to the loop once ready.
// Closing the returned slot releases the segmenter, even if it is still loading.
func loadSegmenterAsync(args *CliArgs, loop *compositor.Loop, panel *ControlPanel) *segmenterSlot {
	slot := &segmenterSlot{}

	go func() {
		logger := logger.WithField("segmenter", args.Segmenter)
		panel.SetModelStatus("Loading model ...")

		seg, err := newSegmenter(args)
		if err != nil {
			logger.WithError(err).Errorf("Segmenter failed to load.")
			panel.SetModelStatus("Model unavailable")
			panel.ShowError(err)
			return
		}

		if !slot.Put(seg) {
			logger.Debugf("Segmenter loaded after shutdown.")
			return
		}

		logger.Infof("Segmenter ready.")
		panel.SetModelStatus("Model ready")
		loop.SetSegmenter(seg)
	}()

	return slot
}
