package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/allocation/internal/platform/logger"
)

func NewRouter(h *HTTPHandler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Post("/batches", h.AddBatch)
	r.Post("/allocate", h.Allocate)
	r.Post("/deallocate", h.Deallocate)
	r.Get("/products/{sku}", h.GetProduct)

	r.Post("/assets", h.AddAsset)
	r.Post("/trackers", h.AllocateTracker)
	r.Post("/models", h.RegisterModel)
	r.Get("/models/{symbol}", h.ListModels)
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
