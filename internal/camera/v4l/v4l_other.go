//go:build !linux

// Package v4l reads MJPEG frames from a Video4Linux webcam.
package v4l

import (
	"fmt"
	"image"
	"runtime"

	"github.com/vbonduro/cashreg/internal/domain"
)

type Source struct{}

func Open(path string, _, _ uint32) (*Source, error) {
	return nil, fmt.Errorf("%w: video4linux is not available on %s (%s)", domain.ErrDevice, runtime.GOOS, path)
}

func (s *Source) ReadFrame() (image.Image, error) {
	return nil, domain.ErrDevice
}

func (s *Source) Close() error {
	return nil
}
