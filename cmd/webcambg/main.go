package main

import (
	"fmt"
	"image/color"
	"os"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation/gocvseg"
)

const (
	backendMediaDevices = "mediadevices"
	backendGoCV         = "gocv"

	segmenterDNN  = "dnn"
	segmenterMOG2 = "mog2"
)

// CliArgs stores the parsed command line arguments.
type CliArgs struct {
	// Backend selects the capture implementation: "mediadevices" acquires camera and
	// microphone together, "gocv" opens SourceId through OpenCV (video only).
	Backend string

	// SourceId identifies the source for the frames for GoCV.
	// It can be a device ID, a file name, a URL, etc.
	// See https://pkg.go.dev/gocv.io/x/gocv#OpenVideoCapture
	SourceId string

	// Width and Height are the requested capture size; zero leaves it to the device.
	Width  int
	Height int

	// Segmenter picks the person segmentation: "dnn" or "mog2".
	Segmenter string

	// ModelFile is the segmentation network loaded by the "dnn" segmenter.
	ModelFile string

	// ModelInputSize is the fixed network input, e.g. "256x256".
	ModelInputSize string

	// MaskOps are the erode/dilate ops the "mog2" segmenter runs on its raw mask.
	MaskOps string

	// MinArea and PostContourOps control how the "mog2" segmenter fills its foreground blobs.
	MinArea        float64
	PostContourOps string

	ResolutionString string
	Threshold        float64

	// BackgroundString is the initial background: none, color or image.
	BackgroundString string
	ColorString      string
	ImageFile        string

	Mirror bool
	Volume float64

	// LogLevelString can be used to override the default log level.
	LogLevelString string

	// logLevel is the numeric representation of the log level.
	logLevel logrus.Level

	resolution      segmentation.Resolution
	background      background.Kind
	backgroundColor color.RGBA
	modelInput      [2]int
}

func defaultCliArgs() *CliArgs {
	return &CliArgs{
		Backend:          backendMediaDevices,
		SourceId:         "0",
		Width:            640,
		Height:           480,
		Segmenter:        segmenterDNN,
		ModelInputSize:   "256x256",
		MaskOps:          gocvseg.DefaultMOG2Parameters().OpsOnRawThreshold,
		MinArea:          gocvseg.DefaultMOG2Parameters().MinArea,
		PostContourOps:   gocvseg.DefaultMOG2Parameters().PostContourOps,
		ResolutionString: segmentation.DefaultConfig().InternalResolution.String(),
		Threshold:        segmentation.DefaultConfig().Threshold,
		BackgroundString: background.None.String(),
		ColorString:      "#3498db",
		Volume:           1.0,
		LogLevelString:   "INFO",
		logLevel:         logrus.InfoLevel,
	}
}

func (args *CliArgs) Validate() error {
	validators := []func() error{
		args.ValidateBackend,
		args.ValidateSegmenter,
		args.ValidateSegmentationConfig,
		args.ValidateBackground,
		args.ValidateVolume,
		args.ValidateLogLevelString,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (args *CliArgs) ValidateBackend() error {
	switch args.Backend {
	case backendMediaDevices:
	case backendGoCV:
		if args.SourceId == "" {
			return errors.New("the gocv backend needs a source")
		}
	default:
		return errors.Errorf("unknown capture backend '%s'", args.Backend)
	}

	if args.Width < 0 || args.Height < 0 {
		return errors.Errorf("invalid capture size %dx%d", args.Width, args.Height)
	}
	return nil
}

func (args *CliArgs) ValidateSegmenter() error {
	switch args.Segmenter {
	case segmenterDNN:
		if args.ModelFile == "" {
			return errors.New("the dnn segmenter needs a model file")
		}

		var w, h int
		if _, err := fmt.Sscanf(strings.ToLower(args.ModelInputSize), "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
			return errors.Errorf("invalid model input size '%s'", args.ModelInputSize)
		}
		args.modelInput = [2]int{w, h}
		return nil

	case segmenterMOG2:
		isImageOp := regexp.MustCompile(gocvseg.AllImageOps)
		if !isImageOp.MatchString(args.MaskOps) || !isImageOp.MatchString(args.PostContourOps) {
			return errors.New(gocvseg.UnknownImageOpErrMsg(gocvseg.AllImageOps))
		}
		if args.MinArea < 0 {
			return errors.Errorf("negative minimum area %v", args.MinArea)
		}
		return nil

	default:
		return errors.Errorf("unknown segmenter '%s'", args.Segmenter)
	}
}

func (args *CliArgs) ValidateSegmentationConfig() error {
	r, err := segmentation.ParseResolution(strings.ToLower(args.ResolutionString))
	if err != nil {
		return err
	}

	cfg := segmentation.Config{InternalResolution: r, Threshold: args.Threshold}
	if err := cfg.Validate(); err != nil {
		return err
	}

	args.resolution = r
	return nil
}

func (args *CliArgs) ValidateBackground() error {
	kind, err := background.ParseKind(strings.ToLower(args.BackgroundString))
	if err != nil {
		return err
	}

	c, err := parseColor(args.ColorString)
	if err != nil {
		return err
	}

	if kind == background.Image && args.ImageFile == "" {
		return errors.New("an image background needs an image file")
	}

	args.background = kind
	args.backgroundColor = c
	return nil
}

func (args *CliArgs) ValidateVolume() error {
	if args.Volume < 0 || args.Volume > 1 {
		return errors.Errorf("volume %v out of [0, 1]", args.Volume)
	}
	return nil
}

func (args *CliArgs) ValidateLogLevelString() error {
	l, err := logrus.ParseLevel(args.LogLevelString)
	if err != nil {
		return err
	}

	args.logLevel = l
	return nil
}

func (args *CliArgs) SegmentationConfig() segmentation.Config {
	return segmentation.Config{
		InternalResolution: args.resolution,
		Threshold:          args.Threshold,
	}
}

// parseColor accepts CSS style hex colors, "#3498db" or "3498db".
func parseColor(s string) (color.RGBA, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid background color '%s'", s)
	}

	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func guiFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       fmt.Sprintf("capture backend: [%s|%s]", backendMediaDevices, backendGoCV),
			Value:       args.Backend,
			EnvVars:     []string{"WEBCAMBG_BACKEND"},
			Destination: &args.Backend,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "gocv source frame stream; e.g., device ID, file name, URL, etc.",
			Value:       args.SourceId,
			EnvVars:     []string{"WEBCAMBG_SOURCE"},
			Destination: &args.SourceId,
		},
		&cli.IntFlag{
			Name:        "width",
			Usage:       "requested capture width",
			Value:       args.Width,
			EnvVars:     []string{"WEBCAMBG_WIDTH"},
			Destination: &args.Width,
		},
		&cli.IntFlag{
			Name:        "height",
			Usage:       "requested capture height",
			Value:       args.Height,
			EnvVars:     []string{"WEBCAMBG_HEIGHT"},
			Destination: &args.Height,
		},
		&cli.StringFlag{
			Name:        "resolution",
			Aliases:     []string{"r"},
			Usage:       "internal segmentation resolution: [low|medium|high|full]",
			Value:       args.ResolutionString,
			EnvVars:     []string{"WEBCAMBG_RESOLUTION"},
			Destination: &args.ResolutionString,
		},
		&cli.Float64Flag{
			Name:        "threshold",
			Aliases:     []string{"t"},
			Usage:       "person confidence threshold in [0, 1]",
			Value:       args.Threshold,
			EnvVars:     []string{"WEBCAMBG_THRESHOLD"},
			Destination: &args.Threshold,
		},
		&cli.StringFlag{
			Name:        "background",
			Aliases:     []string{"b"},
			Usage:       "initial background: [none|color|image]",
			Value:       args.BackgroundString,
			EnvVars:     []string{"WEBCAMBG_BACKGROUND"},
			Destination: &args.BackgroundString,
		},
		&cli.StringFlag{
			Name:        "color",
			Usage:       "background color as hex; e.g., #3498db",
			Value:       args.ColorString,
			EnvVars:     []string{"WEBCAMBG_COLOR"},
			Destination: &args.ColorString,
		},
		&cli.StringFlag{
			Name:        "image",
			Aliases:     []string{"i"},
			Usage:       "background image file",
			EnvVars:     []string{"WEBCAMBG_IMAGE"},
			Destination: &args.ImageFile,
		},
		&cli.BoolFlag{
			Name:        "mirror",
			Usage:       "mirror the displayed video",
			EnvVars:     []string{"WEBCAMBG_MIRROR"},
			Destination: &args.Mirror,
		},
		&cli.Float64Flag{
			Name:        "volume",
			Usage:       "audio volume in [0, 1]",
			Value:       args.Volume,
			EnvVars:     []string{"WEBCAMBG_VOLUME"},
			Destination: &args.Volume,
		},
	}
}

func newApp(args *CliArgs) *cli.App {
	return &cli.App{
		Name:  "webcambg",
		Usage: "replace the background behind the person in a webcam feed",

		Before: func(c *cli.Context) error {
			err := args.ValidateLogLevelString()
			if err != nil {
				return err
			}

			initLogger(args.logLevel)
			return nil
		},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       fmt.Sprintf("log level: [%s]", allLogLevels),
				Value:       args.LogLevelString,
				EnvVars:     []string{"WEBCAMBG_LOG_LEVEL"},
				Destination: &args.LogLevelString,
			},
		},

		Commands: []*cli.Command{
			{
				Name:  "gui",
				Usage: "Run GUI application",

				Flags: guiFlags(args),

				Subcommands: []*cli.Command{
					{
						Name:  segmenterDNN,
						Usage: "Segment with a person segmentation network",

						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:        "model",
								Aliases:     []string{"m"},
								Usage:       "segmentation model to load; e.g., ./selfie_segmentation.onnx",
								Required:    true,
								EnvVars:     []string{"WEBCAMBG_MODEL"},
								Destination: &args.ModelFile,
							},
							&cli.StringFlag{
								Name:        "model-input",
								Usage:       "fixed network input size, WxH",
								Value:       args.ModelInputSize,
								EnvVars:     []string{"WEBCAMBG_MODEL_INPUT"},
								Destination: &args.ModelInputSize,
							},
						},

						Before: func(c *cli.Context) error {
							args.Segmenter = segmenterDNN
							return args.Validate()
						},

						Action: func(c *cli.Context) error {
							logger.Infof("Running with arguments: %+v", *args)
							return guiMain(c.Context, args)
						},
					},

					{
						Name:  segmenterMOG2,
						Usage: "Segment moving foreground with a MOG2 background subtractor",

						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:        "ops",
								Usage:       "erode/dilate ops on the raw mask; e.g., edd",
								Value:       args.MaskOps,
								EnvVars:     []string{"WEBCAMBG_MASK_OPS"},
								Destination: &args.MaskOps,
							},
							&cli.Float64Flag{
								Name:        "min-area",
								Usage:       "smallest foreground blob kept, in pixels; 0 keeps the raw mask",
								Value:       args.MinArea,
								EnvVars:     []string{"WEBCAMBG_MIN_AREA"},
								Destination: &args.MinArea,
							},
							&cli.StringFlag{
								Name:        "post-ops",
								Usage:       "erode/dilate ops on the filled mask",
								Value:       args.PostContourOps,
								EnvVars:     []string{"WEBCAMBG_POST_OPS"},
								Destination: &args.PostContourOps,
							},
						},

						Before: func(c *cli.Context) error {
							args.Segmenter = segmenterMOG2
							return args.Validate()
						},

						Action: func(c *cli.Context) error {
							logger.Infof("Running with arguments: %+v", *args)
							return guiMain(c.Context, args)
						},
					},
				},
			},
		},
	}
}

func main() {
	err := newApp(defaultCliArgs()).Run(os.Args)
	if err != nil {
		fmt.Println("Application failed:", err.Error())
		os.Exit(1)
	}
}
