package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/imagestore"
)

// FeedInterval is how often the live feed pulls a frame (50 per second).
const FeedInterval = 20 * time.Millisecond

// FrameSource is a camera handle.
type FrameSource interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// Display receives live frames. Render is called from the feed goroutine;
// implementations that drive a UI toolkit must hand the frame to the UI's own
// event loop and return quickly.
type Display interface {
	Render(img image.Image)
}

// Device owns a FrameSource and the feed that polls it. Frame reads are
// serialised, so a still capture never races the feed for the device.
type Device struct {
	images   imagestore.ImageStore
	logger   *slog.Logger
	interval time.Duration

	srcMu    sync.Mutex
	source   FrameSource
	released bool

	feedMu     sync.Mutex
	feedCancel context.CancelFunc
	feedDone   chan struct{}
}

func NewDevice(source FrameSource, images imagestore.ImageStore, logger *slog.Logger) *Device {
	return &Device{
		source:   source,
		images:   images,
		logger:   logger,
		interval: FeedInterval,
	}
}

// StartFeed begins rendering frames to display until ctx is cancelled,
// StopFeed is called, or the device is released.
func (d *Device) StartFeed(ctx context.Context, display Display) error {
	d.feedMu.Lock()
	defer d.feedMu.Unlock()

	if d.isReleased() {
		return fmt.Errorf("failed to start feed: %w: device released", domain.ErrDevice)
	}
	if d.feedCancel != nil {
		return errors.New("feed already running")
	}

	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.feedCancel, d.feedDone = cancel, done

	go d.runFeed(feedCtx, display, done)
	d.logger.Debug("camera feed started", "interval", d.interval)
	return nil
}

// StopFeed cancels the feed and waits for an in-flight frame to finish. A
// feed whose context was cancelled clears itself, so calling StopFeed is only
// needed to end a feed early.
func (d *Device) StopFeed() {
	d.feedMu.Lock()
	cancel, done := d.feedCancel, d.feedDone
	d.feedCancel, d.feedDone = nil, nil
	d.feedMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.logger.Debug("camera feed stopped")
}

func (d *Device) runFeed(ctx context.Context, display Display, done chan struct{}) {
	defer close(done)
	defer d.clearFeed(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, err := d.readFrame()
		if err != nil {
			// A disconnected camera just stops producing frames.
			d.logger.Debug("camera frame unavailable", "error", err)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		display.Render(img)
	}
}

// clearFeed forgets the feed identified by done unless StopFeed or a newer
// StartFeed already replaced it.
func (d *Device) clearFeed(done chan struct{}) {
	d.feedMu.Lock()
	defer d.feedMu.Unlock()
	if d.feedDone != done {
		return
	}
	d.feedCancel()
	d.feedCancel, d.feedDone = nil, nil
}

// CaptureStill reads a fresh frame, independent of the feed, and stores it as
// a JPEG. It returns the path to record on the customer.
func (d *Device) CaptureStill(ctx context.Context) (string, error) {
	img, err := d.readFrame()
	if err != nil {
		return "", fmt.Errorf("failed to capture still: %w: %v", domain.ErrDevice, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode still: %w", err)
	}

	key, err := d.images.Save(ctx, "id", "image/jpeg", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to save still: %w", err)
	}
	path, err := d.images.Path(key)
	if err != nil {
		return "", err
	}
	d.logger.Info("id image captured", "path", path)
	return path, nil
}

// Release stops the feed and closes the source. The device is marked released
// first so no new feed can start, and the source is closed only after any
// in-flight read has returned. Calling Release again is a no-op.
func (d *Device) Release() error {
	d.srcMu.Lock()
	if d.released {
		d.srcMu.Unlock()
		return nil
	}
	d.released = true
	d.srcMu.Unlock()

	d.StopFeed()

	d.srcMu.Lock()
	defer d.srcMu.Unlock()
	if err := d.source.Close(); err != nil {
		return fmt.Errorf("failed to release camera: %w", err)
	}
	return nil
}

func (d *Device) readFrame() (image.Image, error) {
	d.srcMu.Lock()
	defer d.srcMu.Unlock()
	if d.released {
		return nil, errors.New("device released")
	}
	img, err := d.source.ReadFrame()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("no frame")
	}
	return img, nil
}

func (d *Device) isReleased() bool {
	d.srcMu.Lock()
	defer d.srcMu.Unlock()
	return d.released
}
