// Package web serves the register over a local JSON API for a browser or
// tablet front end at the till.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/cashreg/internal/camera"
	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/imagestore"
	"github.com/vbonduro/cashreg/internal/payment"
	"github.com/vbonduro/cashreg/internal/service"
)

// Deps are the services the API exposes. Camera may be nil when no capture
// device could be opened; camera routes then answer 503.
type Deps struct {
	Inventory    *service.InventoryService
	Customers    *service.CustomerService
	Transactions *service.TransactionService
	Checkout     *service.Checkout
	Images       imagestore.ImageStore
	Camera       *camera.Device
}

type Server struct {
	Deps
	mux    *http.ServeMux
	logger *slog.Logger
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		Deps:   deps,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /inventory", s.handleListInventory)
	s.mux.HandleFunc("GET /inventory/barcode/{barcode}", s.handleLookupBarcode)
	s.mux.HandleFunc("GET /inventory/{id}", s.handleGetItem)
	s.mux.HandleFunc("POST /checkout/quote", s.handleQuote)
	s.mux.HandleFunc("POST /checkout", s.handleCheckout)
	s.mux.HandleFunc("GET /transactions", s.handleListTransactions)
	s.mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	s.mux.HandleFunc("POST /customers", s.handleCreateCustomer)
	s.mux.HandleFunc("GET /customers/{id}", s.handleGetCustomer)
	s.mux.HandleFunc("GET /customers/{id}/id-image", s.handleGetIDImage)
	s.mux.HandleFunc("POST /id-images", s.handleUploadIDImage)
	s.mux.HandleFunc("POST /camera/capture", s.handleCapture)
	s.mux.HandleFunc("GET /camera/feed", s.handleFeed)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the camera feed streams indefinitely
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("stopping server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

// writeError maps err onto a status code and a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConstraint), errors.Is(err, domain.ErrImmutable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnderage):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDevice), errors.Is(err, domain.ErrConfig):
		return http.StatusServiceUnavailable
	}
	var ce *payment.ChargeError
	if errors.As(err, &ce) {
		if ce.Outcome == payment.OutcomeRejected {
			return http.StatusPaymentRequired
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a size-capped JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}

const maxJSONBody = 1 << 20

// parseID extracts the {id} path variable and returns it as int64.
func parseID(r *http.Request) (int64, error) {
	return parsePositiveID(r.PathValue("id"))
}

func parsePositiveID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, s)
	}
	return id, nil
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
