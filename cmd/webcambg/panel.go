package main

import (
	"context"
	"image/color"
	"io"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/camera"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/compositor"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

// ControlPanel is the camera start/stop toolbar action plus the settings column.
type ControlPanel struct {
	ctx    context.Context
	window fyne.Window

	toolbar *widget.Toolbar
	action  *widget.ToolbarAction

	ctrl     *camera.Controller
	provider *background.Provider
	state    *settings.Settings
	loop     *compositor.Loop

	states map[state]stateDetails

	settingsContainer *fyne.Container
	backgroundSelect  *widget.Select
	syncingSelect     atomic.Bool
	backgroundColor   color.Color
	modelStatus       *widget.Label
	status            *widget.Label

	threshold float64
}

func NewControlPanel(
	ctx context.Context,
	win fyne.Window,
	toolbar *widget.Toolbar,
	ctrl *camera.Controller,
	provider *background.Provider,
	displayState *settings.Settings,
	loop *compositor.Loop,
	backgroundColor color.Color,
) *ControlPanel {
	p := &ControlPanel{
		ctx:             ctx,
		window:          win,
		toolbar:         toolbar,
		ctrl:            ctrl,
		provider:        provider,
		state:           displayState,
		loop:            loop,
		backgroundColor: backgroundColor,
		modelStatus:     widget.NewLabel(""),
		status:          widget.NewLabel(""),
		threshold:       loop.Config().Threshold,
	}

	p.states = map[state]stateDetails{
		stopped: {
			name:       "STOPPED",
			buttonIcon: theme.MediaPlayIcon(),
		},
		playing: {
			name:       "PLAYING",
			buttonIcon: theme.MediaStopIcon(),
		},
	}

	p.action = widget.NewToolbarAction(p.states[stopped].buttonIcon, p.changeState).(*widget.ToolbarAction)
	p.makeSettingsContainer()

	return p
}

func (p *ControlPanel) ToolbarAction() *widget.ToolbarAction {
	return p.action
}

func (p *ControlPanel) SettingsContainer() *fyne.Container {
	return p.settingsContainer
}

func (p *ControlPanel) SetModelStatus(s string) {
	p.modelStatus.SetText(s)
}

func (p *ControlPanel) SetStatus(s string) {
	p.status.SetText(s)
}

func (p *ControlPanel) ShowError(err error) {
	dialog.ShowError(err, p.window)
}

// RefreshState makes the toolbar action reflect whether the camera is on.
func (p *ControlPanel) RefreshState() {
	s := stopped
	if p.ctrl.Active() {
		s = playing
	}

	logger.Tracef("Camera state is '%s'.", p.states[s].name)
	p.action.Icon = p.states[s].buttonIcon
	p.toolbar.Refresh()
	if s == stopped {
		p.SetStatus("")
	}
}

// ApplyInitialBackground selects the background given on the command line.
func (p *ControlPanel) ApplyInitialBackground(kind background.Kind, imageFile string) {
	switch kind {
	case background.Color:
		p.provider.SelectColor(p.backgroundColor)
		p.syncBackgroundSelect()

	case background.Image:
		p.syncingSelect.Store(true)
		p.backgroundSelect.SetSelected(background.Image.String())
		p.syncingSelect.Store(false)

		go func() {
			err := p.provider.LoadImageFile(p.ctx, imageFile)
			p.finishImageLoad(err, imageFile)
		}()

	default:
		p.provider.SelectNone()
		p.syncBackgroundSelect()
	}
}

func (p *ControlPanel) changeState() {
	go func() {
		if err := p.ctrl.Toggle(p.ctx); err != nil {
			logger.WithError(err).Errorf("Camera toggle failed.")
			p.ShowError(err)
		}
	}()
}

func (p *ControlPanel) makeSettingsContainer() {
	p.settingsContainer = container.New(layout.NewVBoxLayout(),
		widget.NewSeparator(),
		p.makeBackgroundContainer(),
		widget.NewSeparator(),
		p.makeSegmentationContainer(),
		widget.NewSeparator(),
		p.makeDisplayContainer(),
		widget.NewSeparator(),
		p.modelStatus,
		p.status,
	)
}

func (p *ControlPanel) makeBackgroundContainer() *fyne.Container {
	p.backgroundSelect = widget.NewSelect(
		[]string{background.None.String(), background.Color.String(), background.Image.String()},
		p.selectBackground,
	)

	bgColorRect := &canvas.Rectangle{
		FillColor:   p.backgroundColor,
		StrokeColor: color.NRGBA{0xff, 0xff, 0xff, 0xff},
		StrokeWidth: 1,
	}

	bgColorButton := widget.NewButtonWithIcon("", theme.ColorPaletteIcon(), func() {
		picker := dialog.NewColorPicker("Pick a Color", "Pick background color", func(c color.Color) {
			p.backgroundColor = c
			bgColorRect.FillColor = c
			bgColorRect.Refresh()

			p.provider.SelectColor(c)
			p.syncBackgroundSelect()
		}, p.window)
		picker.Advanced = true
		picker.Show()
	})

	imageButton := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), p.openImage)

	return container.NewGridWithColumns(2,
		widget.NewLabel("Background:"),
		p.backgroundSelect,

		widget.NewLabel("Background color:"),
		// NOTE: This "hack" allows to change the background color of the button.
		container.New(layout.NewMaxLayout(), bgColorRect, bgColorButton),

		widget.NewLabel("Background image:"),
		imageButton,
	)
}

func (p *ControlPanel) makeSegmentationContainer() *fyne.Container {
	resolutions := []string{
		segmentation.Low.String(),
		segmentation.Medium.String(),
		segmentation.High.String(),
		segmentation.Full.String(),
	}
	resolutionSelect := widget.NewSelect(resolutions, func(s string) {
		r, err := segmentation.ParseResolution(s)
		if err != nil {
			logger.WithError(err).Warnf("Ignoring internal resolution.")
			return
		}

		cfg := p.loop.Config()
		cfg.InternalResolution = r
		p.loop.SetConfig(cfg)
	})
	resolutionSelect.SetSelected(p.loop.Config().InternalResolution.String())

	thresholdData := binding.BindFloat(&p.threshold)
	thresholdLabel := widget.NewLabelWithData(binding.FloatToStringWithFormat(thresholdData, "%.2f"))
	thresholdEntry := widget.NewSliderWithData(0.0, 1.0, thresholdData)
	thresholdEntry.Step = 0.01
	thresholdData.AddListener(binding.NewDataListener(func() {
		v, err := thresholdData.Get()
		if err != nil {
			return
		}

		cfg := p.loop.Config()
		cfg.Threshold = v
		p.loop.SetConfig(cfg)
	}))

	return container.NewGridWithColumns(2,
		widget.NewLabel("Resolution:"),
		resolutionSelect,

		container.NewHBox(widget.NewLabel("Threshold:"), thresholdLabel),
		thresholdEntry,
	)
}

func (p *ControlPanel) makeDisplayContainer() *fyne.Container {
	mirrorCheck := widget.NewCheck("Mirror", p.state.SetMirrored)
	mirrorCheck.SetChecked(p.state.Mirrored())

	volumeSlider := widget.NewSlider(0.0, 1.0)
	volumeSlider.Step = 0.01
	volumeSlider.Value = p.state.Volume()
	volumeSlider.OnChanged = func(v float64) {
		p.ctrl.SetVolume(v)
	}

	return container.NewGridWithColumns(2,
		mirrorCheck,
		widget.NewLabel(""),

		widget.NewLabel("Volume:"),
		volumeSlider,
	)
}

func (p *ControlPanel) selectBackground(name string) {
	if p.syncingSelect.Load() {
		return
	}

	kind, err := background.ParseKind(name)
	if err != nil {
		logger.WithError(err).Warnf("Ignoring background selection.")
		return
	}

	switch kind {
	case background.None:
		p.provider.SelectNone()
	case background.Color:
		p.provider.SelectColor(p.backgroundColor)
	case background.Image:
		p.openImage()
	}
}

func (p *ControlPanel) openImage() {
	fd := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			p.ShowError(err)
			p.syncBackgroundSelect()
			return
		}
		if r == nil {
			// Cancelled.
			p.syncBackgroundSelect()
			return
		}
		defer r.Close()

		raw, err := io.ReadAll(r)
		if err != nil {
			p.ShowError(errors.Wrapf(err, "failed to read '%s'", r.URI().Name()))
			p.syncBackgroundSelect()
			return
		}

		name := r.URI().Name()
		result := p.provider.SelectImage(p.ctx, raw)
		go func() {
			p.finishImageLoad(<-result, name)
		}()
	}, p.window)

	fd.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	fd.Show()
}

func (p *ControlPanel) finishImageLoad(err error, name string) {
	switch {
	case err == nil:
		logger.WithField("image", name).Infof("Background image selected.")
	case errors.Is(err, background.ErrSuperseded):
		logger.WithField("image", name).Debugf("Background image superseded by a newer selection.")
		return
	default:
		logger.WithError(err).WithField("image", name).Errorf("Background image rejected.")
		p.ShowError(err)
	}
	p.syncBackgroundSelect()
}

// syncBackgroundSelect shows the selection actually in effect without re-triggering it.
func (p *ControlPanel) syncBackgroundSelect() {
	p.syncingSelect.Store(true)
	defer p.syncingSelect.Store(false)

	p.backgroundSelect.SetSelected(p.provider.Selection().Kind().String())
}

type state int8

const (
	stopped state = 0
	playing state = 1
)

type stateDetails struct {
	name       string
	buttonIcon fyne.Resource
}
