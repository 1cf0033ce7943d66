package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/service"
)

const maxIDImageSize = 10 * 1024 * 1024 // 10 MB

// allowedImageTypes is the set of MIME types accepted for uploaded ID scans.
// The image store keeps only JPEG and PNG.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

type customerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	DOB       string `json:"dob"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	// IDImageKey names an image previously uploaded or captured through this
	// API. Clients never supply filesystem paths.
	IDImageKey string `json:"id_image_key"`
}

type imageResponse struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	v := domain.NewValidationError("customer")
	dob, err := time.ParseInLocation(domain.DateLayout, req.DOB, time.Local)
	if err != nil {
		v.Addf("dob", "%q is not a YYYY-MM-DD date", req.DOB)
	}
	var imagePath string
	if req.IDImageKey == "" {
		v.Addf("id_image_key", "is required")
	} else if imagePath, err = s.Images.Path(req.IDImageKey); err != nil {
		v.Addf("id_image_key", "%q is not a stored image", req.IDImageKey)
	}
	if err := v.ErrorOrNil(); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.Customers.Create(r.Context(), req.FirstName, req.LastName, req.Email, dob, imagePath,
		service.CustomerOptions{
			Phone:   req.Phone,
			Address: req.Address,
			City:    req.City,
			State:   req.State,
			ZipCode: req.ZipCode,
		})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Customers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Customers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleGetIDImage serves a customer's ID image when it lives in the image
// store.
func (s *Server) handleGetIDImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Customers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := filepath.Base(c.IDImagePath)
	stored, err := s.Images.Path(key)
	if err != nil || filepath.Clean(stored) != filepath.Clean(c.IDImagePath) {
		s.writeError(w, r, fmt.Errorf("id image for customer %d %w", id, domain.ErrNotFound))
		return
	}

	reader, mimeType, err := s.Images.Open(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(reader, "id image", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write id image failed", "customer_id", id, "error", err)
	}
}

// handleUploadIDImage accepts a scanned ID as the "image" field of a
// multipart form.
func (s *Server) handleUploadIDImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIDImageSize+1024*1024)
	if err := r.ParseMultipartForm(maxIDImageSize); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: failed to parse form", domain.ErrValidation))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: image file required", domain.ErrValidation))
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	mimeType, ok := allowedImageMIME(data)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: unsupported image format", domain.ErrValidation))
		return
	}

	key, err := s.Images.Save(r.Context(), "id", mimeType, bytes.NewReader(data))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := s.Images.Path(key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("id image uploaded", "key", key, "bytes", len(data))
	s.writeJSON(w, http.StatusCreated, imageResponse{Key: key, Path: path})
}
