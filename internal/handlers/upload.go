package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/wardrobe"
)

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.wardrobe.List(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if items == nil {
		items = []models.UploadedItem{}
	}
	h.writeJSON(w, items)
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	item, err := h.wardrobe.Add(r.Context(), wardrobe.Upload(*up))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSONStatus(w, http.StatusCreated, map[string]any{
		"item":   item,
		"notice": models.Success("✅ Clothing uploaded successfully!"),
	})
}

func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid item id", http.StatusBadRequest)
		return
	}
	if err := h.wardrobe.Delete(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
