package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/session"
)

func (h *Handler) writePNG(w http.ResponseWriter, data []byte, source string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	if source != "" {
		w.Header().Set("X-Tryon-Source", source)
	}
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write image response", "err", err)
	}
}

// HandleRender composites the session's images with its current adjustment
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	data, err := h.sessions.Render(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writePNG(w, data, session.SourceLocal)
}

// HandleResult returns the last committed render or try-on result
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	data, source, ok := s.Result()
	if !ok {
		h.writeError(w, "No result yet", http.StatusNotFound)
		return
	}
	h.writePNG(w, data, source)
}

type tryOnResponse struct {
	Result            models.TryOnResult `json:"result"`
	ResultImageBase64 string             `json:"result_image_base64"`
	Notice            *models.Notice     `json:"notice"`
}

// HandleTryOn runs the remote try-on with local fallback
func (h *Handler) HandleTryOn(w http.ResponseWriter, r *http.Request) {
	out, err := h.sessions.TryOn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, tryOnResponse{
		Result:            out.Result,
		ResultImageBase64: base64.StdEncoding.EncodeToString(out.Image),
		Notice:            out.Notice,
	})
}
