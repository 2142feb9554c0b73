package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/studynotes/internal/identity"
	"github.com/starford/studynotes/internal/noteservice"
	"github.com/starford/studynotes/internal/sse"
)

// NewRouter creates a chi router with the /auth and /notes routes mounted.
// events, if non-nil, backs GET /notes/events.
func NewRouter(svc *noteservice.Service, idp identity.Provider, events *sse.Broker) chi.Router {
	h := NewHandler(svc, events)
	ah := NewAuthHandler(idp)
	requireAuth := AuthMiddleware(idp)

	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", ah.SignUp)
		r.Post("/signin", ah.SignIn)
		r.Post("/signout", ah.SignOut)
		r.Post("/reset-password", ah.ResetPassword)
		r.Post("/update-password", ah.UpdatePassword)
		r.With(requireAuth).Get("/me", ah.Me)
	})

	r.Route("/notes", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/upload", h.Upload)
			r.Get("/search", h.Search)
			r.Get("/suggestions", h.Suggestions)
			r.Get("/events", h.Events)
			r.Get("/user/{id}", h.ListByOwner)
			r.Get("/{id}", h.GetNote)
			r.Delete("/{id}", h.DeleteNote)
		})
	})

	return r
}
