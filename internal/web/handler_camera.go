package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"

	"github.com/vbonduro/cashreg/internal/domain"
)

// frameQueue is the camera.Display behind the MJPEG feed. It keeps only the
// newest frame so a slow client never stalls the device.
type frameQueue chan image.Image

func (q frameQueue) Render(img image.Image) {
	select {
	case q <- img:
		return
	default:
	}
	// Full: drop the stale frame and retry once.
	select {
	case <-q:
	default:
	}
	select {
	case q <- img:
	default:
	}
}

func (s *Server) cameraUnavailable(w http.ResponseWriter, r *http.Request) bool {
	if s.Camera != nil {
		return false
	}
	s.writeError(w, r, fmt.Errorf("%w: no camera attached", domain.ErrDevice))
	return true
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.cameraUnavailable(w, r) {
		return
	}
	path, err := s.Camera.CaptureStill(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, imageResponse{Key: filepath.Base(path), Path: path})
}

// handleFeed streams the live camera view as multipart/x-mixed-replace JPEG
// frames until the client goes away. One viewer at a time.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.cameraUnavailable(w, r) {
		return
	}
	flusher, canFlush := w.(http.Flusher)

	// Cancelling ctx ends this viewer's feed and nobody else's.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(frameQueue, 1)
	if err := s.Camera.StartFeed(ctx, frames); err != nil {
		if errors.Is(err, domain.ErrDevice) {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)

	var buf bytes.Buffer
	for {
		var img image.Image
		select {
		case <-ctx.Done():
			return
		case img = <-frames:
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
			s.logger.Error("encode feed frame failed", "error", err)
			continue
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(buf.Len())},
		})
		if err != nil {
			return
		}
		if _, err := part.Write(buf.Bytes()); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
