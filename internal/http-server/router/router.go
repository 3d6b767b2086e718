package router

import (
	"net/http"

	"image-ingest/internal/auth"
	upload_h "image-ingest/internal/http-server/handler/upload"
	"image-ingest/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	UploadHandler *upload_h.Handler
	AuthGate      *auth.Gate
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(h.AuthGate))
				r.Post("/upload", h.UploadHandler.Upload)
				r.Post("/upload/chunk", h.UploadHandler.UploadChunk)
				r.Post("/upload/bulk", h.UploadHandler.BulkUpload)
				r.Delete("/{id}", h.UploadHandler.DeleteImage)
			})

			r.Get("/{id}", h.UploadHandler.GetImage)
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	})

	return r
}
