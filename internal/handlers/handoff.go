package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/tryon/internal/handoff"
	"github.com/lehigh-university-libraries/tryon/internal/models"
)

// handoffStore picks the direction from ?target=: "tryon" (default) or "catalog"
func (h *Handler) handoffStore(r *http.Request) (*handoff.Store, bool) {
	switch r.URL.Query().Get("target") {
	case "", "tryon":
		return h.tryOnHandoff, h.tryOnHandoff != nil
	case "catalog":
		return h.catalogHandoff, h.catalogHandoff != nil
	default:
		return nil, false
	}
}

// HandlePublishHandoff accepts either a full record or a catalog/custom item id
func (h *Handler) HandlePublishHandoff(w http.ResponseWriter, r *http.Request) {
	store, ok := h.handoffStore(r)
	if !ok {
		h.writeError(w, "Invalid target. Must be 'tryon' or 'catalog'", http.StatusBadRequest)
		return
	}

	var request struct {
		ItemID      string `json:"item_id"`
		ImageRef    string `json:"image_ref"`
		DisplayName string `json:"display_name"`
		Mode        string `json:"mode"`
		IsCustom    bool   `json:"is_custom"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var mode models.Mode
	if request.Mode != "" {
		m, err := models.ParseMode(request.Mode)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}

	rec := models.HandoffRecord{
		ImageRef:    request.ImageRef,
		DisplayName: request.DisplayName,
		Mode:        mode,
		IsCustom:    request.IsCustom,
	}
	if request.ItemID != "" {
		var err error
		if id, convErr := strconv.ParseInt(request.ItemID, 10, 64); convErr == nil {
			rec, err = h.wardrobe.Handoff(r.Context(), id, mode)
		} else {
			rec, err = h.catalog.Handoff(request.ItemID, mode)
		}
		if err != nil {
			h.writeFailure(w, err)
			return
		}
	}
	if rec.ImageRef == "" || rec.DisplayName == "" {
		h.writeError(w, "No fabric selected", http.StatusBadRequest)
		return
	}

	if err := store.Publish(r.Context(), rec); err != nil {
		h.writeFailure(w, err)
		return
	}

	notice := models.Info("👗 Opening Virtual Try-On Studio...")
	if rec.IsCustom {
		notice = models.Info("📁 Opening upload try-on with your custom item...")
	}
	h.writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"display_name": rec.DisplayName,
		"mode":         rec.Mode,
		"is_custom":    rec.IsCustom,
		"notice":       notice,
	})
}

// HandleConsumeHandoff reads and clears the pending record
func (h *Handler) HandleConsumeHandoff(w http.ResponseWriter, r *http.Request) {
	store, ok := h.handoffStore(r)
	if !ok {
		h.writeError(w, "Invalid target. Must be 'tryon' or 'catalog'", http.StatusBadRequest)
		return
	}

	rec, found, err := store.Consume(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"found":  found,
		"record": rec,
	})
}
