package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the handler's endpoints behind the standard middleware
// stack. RealIP runs before the handlers so rate limiting keys on the
// forwarded client address. Request lines go to the handler's logger.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestLogger(&slogFormatter{logger: h.logger}))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Post("/chat", h.HandleChat)
		r.Post("/usage", h.HandleRecordUsage)
		r.Get("/usage", h.HandleUsage)
		r.Post("/generate-ad", h.HandleGenerateAd)
		// Path used by the existing browser client.
		r.Post("/generateAd", h.HandleGenerateAd)
	})

	return r
}
