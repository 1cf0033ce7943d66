package cli

import (
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/camera"
	"github.com/vbonduro/cashreg/internal/domain"
)

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(opts *RootOptions) *cobra.Command {
	var warmup time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take one still from the webcam into the ID image directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				path, err := captureID(cmd, a, opts, warmup)
				if err != nil {
					return err
				}
				return newPrinter(cmd, opts).emit(map[string]string{"path": path}, func(w io.Writer) {
					fmt.Fprintln(w, path)
				})
			})
		},
	}

	cmd.Flags().DurationVar(&warmup, "warmup", 0, "run the live feed this long before capturing")

	return cmd
}

// frameCounter is a Display that only counts frames, used while the sensor
// settles before a still is taken.
type frameCounter struct {
	frames atomic.Int64
}

func (f *frameCounter) Render(image.Image) {
	f.frames.Add(1)
}

// captureID opens the webcam, optionally runs the live feed for warmup, takes
// one still and releases the device.
func captureID(cmd *cobra.Command, a *app, opts *RootOptions, warmup time.Duration) (string, error) {
	if opts.Device == "" {
		return "", fmt.Errorf("%w: no camera configured, pass --device", domain.ErrDevice)
	}
	src, err := opts.openCamera(opts.Device)
	if err != nil {
		a.logger.Error("camera unavailable", "device", opts.Device, "error", err)
		return "", fmt.Errorf("failed to open camera %s: %w", opts.Device, err)
	}
	dev := camera.NewDevice(src, a.images, a.logger)
	defer func() {
		if err := dev.Release(); err != nil {
			a.logger.Error("failed to release camera", "error", err)
		}
	}()

	if warmup > 0 {
		counter := &frameCounter{}
		if err := dev.StartFeed(cmd.Context(), counter); err != nil {
			return "", err
		}
		select {
		case <-time.After(warmup):
		case <-cmd.Context().Done():
			dev.StopFeed()
			return "", cmd.Context().Err()
		}
		dev.StopFeed()
		a.logger.Debug("camera warmed up", "frames", counter.frames.Load())
	}

	path, err := dev.CaptureStill(cmd.Context())
	if err != nil {
		return "", err
	}
	return path, nil
}
