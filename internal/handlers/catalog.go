package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/tryon/internal/models"
)

// HandleCatalog lists preset items, filtered by ?category= and ?q=
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	query := r.URL.Query().Get("q")

	var items []models.CatalogItem
	if query != "" {
		for _, it := range h.catalog.Search(query) {
			if category == "" || category == "all" || it.Category == category {
				items = append(items, it)
			}
		}
	} else {
		items = h.catalog.ItemsIn(category)
	}
	if items == nil {
		items = []models.CatalogItem{}
	}

	h.writeJSON(w, map[string]any{
		"categories": h.catalog.Categories,
		"items":      items,
	})
}

func (h *Handler) HandleCatalogItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, item)
}
