package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/catalog"
	"github.com/lehigh-university-libraries/tryon/internal/compositor"
	"github.com/lehigh-university-libraries/tryon/internal/handoff"
	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/remote"
	"github.com/lehigh-university-libraries/tryon/internal/session"
	"github.com/lehigh-university-libraries/tryon/internal/wardrobe"
)

// Deps are the components served over HTTP. Remote and History may be nil.
type Deps struct {
	Sessions       *session.Service
	Catalog        *catalog.Catalog
	Wardrobe       *wardrobe.Collection
	TryOnHandoff   *handoff.Store
	CatalogHandoff *handoff.Store
	History        *history.Store
	Remote         *remote.Client
	MaxUploadBytes int64
	AssetsDir      string
}

type Handler struct {
	sessions       *session.Service
	catalog        *catalog.Catalog
	wardrobe       *wardrobe.Collection
	tryOnHandoff   *handoff.Store
	catalogHandoff *handoff.Store
	history        *history.Store
	remote         *remote.Client
	maxUploadBytes int64
	assetsDir      string
}

func New(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = images.DefaultMaxUploadBytes
	}
	if d.AssetsDir == "" {
		d.AssetsDir = "."
	}
	return &Handler{
		sessions:       d.Sessions,
		catalog:        d.Catalog,
		wardrobe:       d.Wardrobe,
		tryOnHandoff:   d.TryOnHandoff,
		catalogHandoff: d.CatalogHandoff,
		history:        d.History,
		remote:         d.Remote,
		maxUploadBytes: d.MaxUploadBytes,
		assetsDir:      d.AssetsDir,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

type errorResponse struct {
	Error  string         `json:"error"`
	Notice *models.Notice `json:"notice"`
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message)
	}
	h.writeJSONStatus(w, code, errorResponse{
		Error:  message,
		Notice: models.Failure("❌ " + message),
	})
}

// writeFailure maps a component error to a status code and user notice
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	code := statusFor(err)
	message := err.Error()
	if isCaptureError(err) {
		message = capture.Remediation(err)
	}
	if errors.Is(err, compositor.ErrMissingInput) {
		message = "Please upload both images first"
	}
	slog.Debug("Request failed", "err", err, "status", code)
	h.writeError(w, message, code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, wardrobe.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case session.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, images.ErrRefNotAllowed),
		errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, capture.ErrDeviceNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrDeviceBusy):
		return http.StatusConflict
	case errors.Is(err, capture.ErrConstraintsUnsatisfiable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isCaptureError(err error) bool {
	return errors.Is(err, capture.ErrPermissionDenied) ||
		errors.Is(err, capture.ErrDeviceNotFound) ||
		errors.Is(err, capture.ErrDeviceBusy) ||
		errors.Is(err, capture.ErrConstraintsUnsatisfiable)
}

type upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// readUpload reads the multipart "file" field, capped at the upload limit.
// Oversized files are reported as images.ErrInvalidFile.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	// leave room for the multipart envelope so the size check below decides
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: file size must be less than %d bytes", images.ErrInvalidFile, h.maxUploadBytes)
		}
		return nil, fmt.Errorf("%w: failed to read file: %v", images.ErrInvalidFile, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = images.SniffType(data)
	}
	if err := images.ValidateUpload(contentType, int64(len(data)), h.maxUploadBytes); err != nil {
		return nil, err
	}

	return &upload{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}
