package surface

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
)

// Bind attaches track as the source side and starts pumping its frames into the surface.
// Any previously bound source is detached first.
func (s *Surface) Bind(track capture.VideoTrack) {
	s.Unbind()

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.bound = true
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.WithField("gen", gen).WithField("track", track.ID()).Debugf("Source bound.")
	go s.pump(ctx, gen, track)
}

// Unbind detaches the source side and forgets the render target. The pump exits once the
// track is stopped or delivers its next frame.
func (s *Surface) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound {
		return
	}

	s.cancel()
	s.cancel = nil
	s.gen++
	s.bound = false
	s.ready = false
	s.frame = nil
	s.target = nil
}

func (s *Surface) pump(ctx context.Context, gen uint64, track capture.VideoTrack) {
	logger := s.logger.WithField("gen", gen)
	defer logger.Tracef("Frame pump stopped.")

	for {
		if ctx.Err() != nil {
			return
		}

		img, err := track.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, capture.ErrTrackStopped) {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Infof("Source reached end of stream.")
			} else {
				logger.WithError(err).Errorf("Frame read failed")
			}
			flow.Report(s.errChan, errors.Wrap(err, "frame pump"))
			return
		}

		if !s.store(gen, img) {
			return
		}
	}
}

// store publishes img as the latest frame. It returns false once gen is no longer bound.
func (s *Surface) store(gen uint64, img image.Image) bool {
	s.mu.Lock()
	if !s.bound || s.gen != gen {
		s.mu.Unlock()
		return false
	}

	s.frame = img
	if s.ready || img == nil {
		s.mu.Unlock()
		return true
	}

	size := img.Bounds().Size()
	s.metadataReadyLocked(gen, size.X, size.Y)
	return true
}
