package notifications

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Router mounts the module's full HTTP surface: the REST history endpoints
// and the WebSocket push endpoint.
//
//	r := chi.NewRouter()
//	r.Mount("/", notifications.Router(svc, hub, log))
func Router(svc *Service, hub *Hub, log *slog.Logger) chi.Router {
	h := NewHandler(svc, log)
	ws := NewWSHandler(hub, log)

	r := chi.NewRouter()
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Put("/read-all", h.MarkAllRead)
		r.Put("/{id}/read", h.MarkRead)
		r.Delete("/{id}", h.Delete)
	})
	r.Get("/ws", ws.ServeHTTP)

	return r
}
