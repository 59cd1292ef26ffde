package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP API router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	r.Get("/static/*", h.HandleStatic)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.HandleCatalog)
		r.Get("/catalog/{id}", h.HandleCatalogItem)

		r.Get("/items", h.HandleListItems)
		r.Post("/items", h.HandleAddItem)
		r.Delete("/items/{id}", h.HandleDeleteItem)

		r.Post("/handoff", h.HandlePublishHandoff)
		r.Post("/handoff/consume", h.HandleConsumeHandoff)

		r.Get("/sessions", h.HandleSessions)
		r.Post("/sessions", h.HandleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleSessionDetail)
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/reset", h.HandleResetSession)
			r.Post("/base", h.HandleSetBase)
			r.Post("/overlay", h.HandleSetOverlay)
			r.Post("/capture", h.HandleCapture)
			r.Put("/adjustment", h.HandleAdjust)
			r.Get("/render.png", h.HandleRender)
			r.Get("/result.png", h.HandleResult)
			r.Post("/tryon", h.HandleTryOn)
		})

		r.Get("/history", h.HandleHistory)
		r.Get("/history/summary", h.HandleHistorySummary)
		r.Get("/history/export.parquet", h.HandleHistoryExport)

		r.Get("/remote/health", h.HandleRemoteHealth)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
