package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the REST and websocket surfaces behind the bearer-auth
// middleware. Health and metrics stay unauthenticated.
func NewRouter(handler *SessionHandler, wsHandler *WSHandler, tokens TokenService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))

		r.Get("/ws", wsHandler.ServeWS)

		r.Route("/classrooms/{classroomID}", func(r chi.Router) {
			r.Post("/join", handler.JoinClassroom)
			r.Get("/roster", handler.GetRoster)
			r.Get("/question", handler.GetActiveQuestion)
			r.Post("/answers", handler.SubmitAnswer)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleProfessor))
				r.Post("/questions", handler.CreateQuestion)
				r.Post("/questions/generate", handler.GenerateQuestion)
				r.Delete("/question", handler.CloseQuestion)
				r.Post("/spin", handler.Spin)
				r.Post("/verdicts", handler.ApplyVerdict)
			})
		})
	})

	return r
}
