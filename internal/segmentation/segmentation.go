// Package segmentation is the boundary to the person segmentation model: given a frame it
// classifies every pixel as person (foreground) or background.
package segmentation

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

var ErrEmptyFrame = errors.New("cannot segment a frame with zero dimensions")

type Resolution int8

const (
	Low    Resolution = 0
	Medium Resolution = 1
	High   Resolution = 2
	Full   Resolution = 3
)

var resolutionNames = map[Resolution]string{
	Low:    "low",
	Medium: "medium",
	High:   "high",
	Full:   "full",
}

func (r Resolution) String() string {
	if name, ok := resolutionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("resolution(%d)", int8(r))
}

// Scale is the fraction of the frame size the model runs at.
func (r Resolution) Scale() float64 {
	switch r {
	case Low:
		return 0.25
	case Medium:
		return 0.5
	case High:
		return 0.75
	default:
		return 1.0
	}
}

func ParseResolution(s string) (Resolution, error) {
	for r, name := range resolutionNames {
		if name == s {
			return r, nil
		}
	}
	return Medium, errors.Errorf("unknown internal resolution '%s'", s)
}

type Config struct {
	InternalResolution Resolution
	// Threshold is the confidence in [0, 1] above which a pixel counts as person.
	Threshold float64
}

func DefaultConfig() Config {
	return Config{
		InternalResolution: Medium,
		Threshold:          0.7,
	}
}

func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Errorf("segmentation threshold %v out of [0, 1]", c.Threshold)
	}
	if _, ok := resolutionNames[c.InternalResolution]; !ok {
		return errors.Errorf("unknown internal resolution %d", c.InternalResolution)
	}
	return nil
}

// Result is valid only for the frame it was computed from.
type Result struct {
	// Mask has the frame's exact dimensions: 0xff marks a person pixel, 0 background.
	Mask *image.Alpha
}

type Segmenter interface {
	// Segment must only be called with a frame of non-zero dimensions.
	Segment(ctx context.Context, frame image.Image, cfg Config) (*Result, error)
}

// SegmenterFunc adapts a plain function to the Segmenter interface.
type SegmenterFunc func(ctx context.Context, frame image.Image, cfg Config) (*Result, error)

func (f SegmenterFunc) Segment(ctx context.Context, frame image.Image, cfg Config) (*Result, error) {
	return f(ctx, frame, cfg)
}

// CheckFrame rejects frames the model must never see.
func CheckFrame(frame image.Image) error {
	if frame == nil || frame.Bounds().Empty() {
		return ErrEmptyFrame
	}
	return nil
}
