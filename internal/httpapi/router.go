package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter mounts the query surface under /api.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/ask", h.Ask)

		r.Get("/faqs", h.ListFAQs)
		r.Post("/faqs", h.CreateFAQ)
		r.Get("/faqs/{id}", h.GetFAQ)
		r.Put("/faqs/{id}", h.ReplaceFAQ)
		r.Delete("/faqs/{id}", h.DeleteFAQ)

		r.Post("/refit", h.Refit)
		r.Post("/save", h.Save)
		r.Get("/stats", h.Stats)

		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Delete("/sessions/{sessionID}", h.CloseSession)
	})

	return r
}

func requestLogger(logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"took":       time.Since(start),
			}).Debug("http request")
		})
	}
}
