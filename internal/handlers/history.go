package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/lehigh-university-libraries/tryon/internal/models"
)

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "History is not enabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if results == nil {
		results = []models.TryOnResult{}
	}
	h.writeJSON(w, results)
}

// HandleHistorySummary aggregates every recorded try-on
func (h *Handler) HandleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "History is not enabled", http.StatusNotFound)
		return
	}

	results, err := h.history.List(r.Context(), 0)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, history.Summarize(results))
}

func (h *Handler) HandleHistoryExport(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "History is not enabled", http.StatusNotFound)
		return
	}

	// buffer so a failed export can still be reported as an error
	var buf bytes.Buffer
	if _, err := h.history.ExportParquet(r.Context(), &buf); err != nil {
		h.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="tryon-history.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// HandleRemoteHealth checks that the try-on API is reachable
func (h *Handler) HandleRemoteHealth(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		h.writeJSON(w, map[string]any{
			"available": false,
			"notice":    models.Warning("⚠️ Try-on API is not configured"),
		})
		return
	}

	status, err := h.remote.Health(r.Context())
	available := err == nil && status == "healthy"
	resp := map[string]any{
		"available": available,
		"status":    status,
	}
	if available {
		resp["notice"] = models.Success("✅ Streaming API is ready!")
	} else {
		if err != nil {
			resp["error"] = err.Error()
		}
		resp["notice"] = models.Warning("⚠️ Streaming API not available. Please start it first.")
	}
	h.writeJSON(w, resp)
}
