//go:build linux

// Package v4l reads MJPEG frames from a Video4Linux webcam.
package v4l

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"

	"github.com/vbonduro/cashreg/internal/domain"
)

// mjpeg is the V4L2 fourcc 'MJPG'.
const mjpeg = webcam.PixelFormat('M' | 'J'<<8 | 'P'<<16 | 'G'<<24)

// frameTimeoutSeconds bounds how long one ReadFrame waits for the device.
const frameTimeoutSeconds = 1

type Source struct {
	cam *webcam.Webcam
}

// Open starts streaming MJPEG frames of roughly width×height from the device
// at path (e.g. /dev/video0).
func Open(path string, width, height uint32) (*Source, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", domain.ErrDevice, path, err)
	}

	if _, ok := cam.GetSupportedFormats()[mjpeg]; !ok {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: %s does not support MJPEG", domain.ErrDevice, path)
	}
	if _, _, _, err := cam.SetImageFormat(mjpeg, width, height); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: failed to set format on %s: %v", domain.ErrDevice, path, err)
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: failed to start streaming on %s: %v", domain.ErrDevice, path, err)
	}
	return &Source{cam: cam}, nil
}

func (s *Source) ReadFrame() (image.Image, error) {
	if err := s.cam.WaitForFrame(frameTimeoutSeconds); err != nil {
		return nil, fmt.Errorf("failed to wait for frame: %w", err)
	}
	frame, err := s.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *Source) Close() error {
	if err := s.cam.StopStreaming(); err != nil {
		_ = s.cam.Close()
		return fmt.Errorf("failed to stop streaming: %w", err)
	}
	return s.cam.Close()
}
