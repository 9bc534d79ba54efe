package main

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/camera"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture/gocvcap"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture/mediadev"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/compositor"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/display"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/surface"
)

func newDevice(args *CliArgs) capture.Device {
	if args.Backend == backendGoCV {
		return gocvcap.NewDevice(args.SourceId, logger)
	}
	return mediadev.NewDevice(logger)
}

func guiMain(parentCtx context.Context, args *CliArgs) error {
	// Create app.

	webcambg := app.NewWithID("webcambg")
	webcambg.SetIcon(theme.MediaVideoIcon())

	// Create app window.

	window := webcambg.NewWindow("WebcamBG")
	window.SetMaster()

	ctx, cancelCtx := context.WithCancel(parentCtx)
	defer cancelCtx()

	// Create the pipeline. The camera starts OFF.

	displayState := settings.New(args.Mirror, args.Volume)
	provider := background.NewProvider(logger)
	surf := surface.New(logger)
	ctrl := camera.NewController(
		newDevice(args),
		capture.Constraints{Width: args.Width, Height: args.Height, Audio: true},
		surf,
		displayState,
		logger,
	)

	presenter := display.NewPresenter(displayState, fyne.NewSize(640.0, 480.0), logger)
	scheduler := display.NewAnimationScheduler(logger)
	loop := compositor.NewLoop(compositor.Options{
		Surface:       surf,
		Provider:      provider,
		Scheduler:     scheduler,
		Presenter:     presenter,
		SessionActive: ctrl.Active,
		Config:        args.SegmentationConfig(),
	}, logger)

	surf.OnReady(loop.Evaluate)
	ctrl.OnChange(loop.Evaluate)

	// Create GUI components.

	toolbar := widget.NewToolbar()
	panel := NewControlPanel(ctx, window, toolbar, ctrl, provider, displayState, loop, args.backgroundColor)
	ctrl.OnChange(func() {
		panel.RefreshState()
		if !ctrl.Active() {
			presenter.Blank()
		}
	})

	toolbar.Append(panel.ToolbarAction())
	toolbar.Append(widget.NewToolbarSeparator())
	toolbar.Append(widget.NewToolbarSpacer())

	mainView := container.New(layout.NewHBoxLayout(),
		panel.SettingsContainer(),
		container.New(layout.NewCenterLayout(), presenter.View()),
	)

	// Populate window.
	window.SetContent(container.New(layout.NewVBoxLayout(),
		toolbar,
		mainView,
	))

	panel.ApplyInitialBackground(args.background, args.ImageFile)
	segmenters := loadSegmenterAsync(args, loop, panel)
	go watchErrors(ctx, ctrl, surf, loop, panel)

	// Start GUI.
	scheduler.Start()
	logger.Infof("Starting GUI application.")
	window.ShowAndRun()
	cancelCtx()
	logger.Tracef("GUI application stopped.")

	// Shutdown.
	scheduler.Stop()
	loop.Close()

	if err := flow.FlattenErrors(ctrl.Stop(), segmenters.Close()); err != nil {
		logger.WithError(err).Error("Shutdown failed.")
	}

	logger.Infof("Shutdown complete.")
	return nil
}

// watchErrors surfaces pipeline errors. A dead frame pump stops the camera so the device is
// released; segmentation failures only update the status line since the loop carries on.
func watchErrors(ctx context.Context, ctrl *camera.Controller, surf *surface.Surface, loop *compositor.Loop, panel *ControlPanel) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-surf.Err():
			logger.WithError(err).Errorf("Video source failed.")
			if stopErr := ctrl.Stop(); stopErr != nil {
				logger.WithError(stopErr).Errorf("Failed to release the camera.")
			}
			panel.ShowError(err)

		case err := <-loop.Err():
			panel.SetStatus(err.Error())
		}
	}
}
