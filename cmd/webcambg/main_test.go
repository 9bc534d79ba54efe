package main

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
)

func validDNNArgs() *CliArgs {
	args := defaultCliArgs()
	args.ModelFile = "selfie.onnx"
	return args
}

func TestDefaultsValidate(t *testing.T) {
	args := validDNNArgs()

	require.NoError(t, args.Validate())
	assert.Equal(t, segmentation.DefaultConfig(), args.SegmentationConfig())
	assert.Equal(t, background.None, args.background)
	assert.Equal(t, color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}, args.backgroundColor)
	assert.Equal(t, [2]int{256, 256}, args.modelInput)
	assert.Equal(t, logrus.InfoLevel, args.logLevel)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*CliArgs){
		"unknown backend":      func(a *CliArgs) { a.Backend = "v4l" },
		"gocv without source":  func(a *CliArgs) { a.Backend = backendGoCV; a.SourceId = "" },
		"negative width":       func(a *CliArgs) { a.Width = -1 },
		"dnn without model":    func(a *CliArgs) { a.ModelFile = "" },
		"bad model input":      func(a *CliArgs) { a.ModelInputSize = "256" },
		"unknown segmenter":    func(a *CliArgs) { a.Segmenter = "grabcut" },
		"bad mask ops":         func(a *CliArgs) { a.Segmenter = segmenterMOG2; a.MaskOps = "ex" },
		"unknown resolution":   func(a *CliArgs) { a.ResolutionString = "ultra" },
		"threshold above one":  func(a *CliArgs) { a.Threshold = 1.5 },
		"unknown background":   func(a *CliArgs) { a.BackgroundString = "blur" },
		"bad color":            func(a *CliArgs) { a.ColorString = "#zzzzzz" },
		"image without file":   func(a *CliArgs) { a.BackgroundString = "image" },
		"volume above one":     func(a *CliArgs) { a.Volume = 2 },
		"negative volume":      func(a *CliArgs) { a.Volume = -0.1 },
		"unknown log level":    func(a *CliArgs) { a.LogLevelString = "LOUD" },
		"zero sized net input": func(a *CliArgs) { a.ModelInputSize = "0x256" },
		"bad post ops":         func(a *CliArgs) { a.Segmenter = segmenterMOG2; a.PostContourOps = "q" },
		"negative min area":    func(a *CliArgs) { a.Segmenter = segmenterMOG2; a.MinArea = -1 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			args := validDNNArgs()
			mutate(args)
			assert.Error(t, args.Validate())
		})
	}
}

func TestValidateMOG2NeedsNoModel(t *testing.T) {
	args := defaultCliArgs()
	args.Segmenter = segmenterMOG2
	args.MaskOps = "eDd"

	assert.NoError(t, args.Validate())
}

func TestValidateParsesSettings(t *testing.T) {
	args := validDNNArgs()
	args.Backend = backendGoCV
	args.SourceId = "clip.mp4"
	args.ResolutionString = "Full"
	args.Threshold = 0.4
	args.BackgroundString = "image"
	args.ImageFile = "beach.jpg"
	args.ModelInputSize = "144X256"
	args.LogLevelString = "debug"

	require.NoError(t, args.Validate())
	assert.Equal(t, segmentation.Config{InternalResolution: segmentation.Full, Threshold: 0.4}, args.SegmentationConfig())
	assert.Equal(t, background.Image, args.background)
	assert.Equal(t, [2]int{144, 256}, args.modelInput)
	assert.Equal(t, logrus.DebugLevel, args.logLevel)
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x80, A: 0xff}, c)

	c, err = parseColor("3498db")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}, c)

	_, err = parseColor("blue")
	assert.Error(t, err)
}

func TestLogLevelsListed(t *testing.T) {
	assert.Contains(t, allLogLevels, "TRACE")
	assert.Contains(t, allLogLevels, "PANIC")
}

func TestNewLoggerFormat(t *testing.T) {
	var out bytes.Buffer
	l := newLogger(&out, logrus.WarnLevel)

	l.Infof("hidden")
	l.WithField("component", "test").Warnf("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
	assert.Contains(t, out.String(), "component=test")
}
