package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/session"
)

type sessionResponse struct {
	Session session.View   `json:"session"`
	Notice  *models.Notice `json:"notice,omitempty"`
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.Registry().GetAll()
	sessionList := make([]session.View, 0, len(sessions))
	for _, s := range sessions {
		sessionList = append(sessionList, s.View())
	}
	h.writeJSON(w, sessionList)
}

// HandleCreateSession starts a session and loads any pending handoff into it,
// the way the try-on page picks up a selection on load
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode := models.ModeUpload
	if request.Mode != "" {
		m, err := models.ParseMode(request.Mode)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}

	view := h.sessions.Create(mode)
	resp := sessionResponse{Session: view}

	if h.tryOnHandoff != nil {
		rec, ok, err := h.tryOnHandoff.Consume(r.Context())
		switch {
		case err != nil:
			slog.Error("Failed to read handoff", "session_id", view.ID, "err", err)
		case ok:
			loaded, err := h.sessions.LoadHandoff(r.Context(), view.ID, *rec)
			if err != nil {
				slog.Warn("Failed to load handoff item", "session_id", view.ID, "item", rec.DisplayName, "err", err)
				resp.Notice = models.Failure("❌ Failed to load selected fabric")
			} else {
				resp.Session = loaded
				resp.Notice = models.Success("👕 " + rec.DisplayName + " ready for try-on!")
			}
		}
	}

	h.writeJSONStatus(w, http.StatusCreated, resp)
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view})
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Reset(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view, Notice: models.Info("🎯 Ready for another try-on!")})
}

func (h *Handler) HandleSetBase(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	view, err := h.sessions.SetBase(chi.URLParam(r, "id"), session.Upload(*up))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view, Notice: models.Success("👤 User photo uploaded successfully!")})
}

func (h *Handler) HandleSetOverlay(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	view, err := h.sessions.SetOverlay(chi.URLParam(r, "id"), session.Upload(*up), r.FormValue("name"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view, Notice: models.Success("👕 Clothing image uploaded successfully!")})
}

func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	c := capture.DefaultConstraints()
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	view, err := h.sessions.CaptureBase(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view, Notice: models.Success("👤 User photo set successfully!")})
}

// HandleAdjust applies the fields present in the body on top of the
// session's current adjustment
func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.sessions.Get(id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	adj := current.Adjustment
	if err := json.NewDecoder(r.Body).Decode(&adj); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	view, err := h.sessions.Adjust(id, adj)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, sessionResponse{Session: view})
}
