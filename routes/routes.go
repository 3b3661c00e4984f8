package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Logger, NoColor: true}),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{app.FrontendURL},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	root.Mount("/api", apiRouter(app))
	root.Handle("/metrics", promhttp.Handler())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	authenticated := middlewares.Authenticated(app.JWTAuth)

	api.Get("/health", Health(app))

	api.Post("/login", Login(app))
	api.Post("/logout", Logout(app))

	api.Route("/polls", func(r chi.Router) {
		r.Get("/", ListPolls(app))
		r.Get(`/{id:^\d+$}`, GetPoll(app))

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Post("/", CreatePoll(app))
			r.Post(`/{id:^\d+$}/vote`, Vote(app))
			r.Post(`/{id:^\d+$}/option`, AddOption(app))
			r.Delete("/delete/vote", DeleteVote(app))
			r.Delete("/remove-votes-user", RemoveVotesForUser(app))

			r.With(middlewares.Admin).Delete(`/{id:^\d+$}/option`, RemoveOption(app))
			r.With(middlewares.Admin).Get(`/{id:^\d+$}/users-vote`, GetVotersForPoll(app))
		})
	})

	api.Route("/users", func(r chi.Router) {
		r.Post("/", CreateUser(app))

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/", ListUsers(app))
			r.Get(`/{id:^\d+$}`, GetUser(app))
			r.Patch(`/{id:^\d+$}`, UpdateUser(app))
			r.With(middlewares.Admin).Delete(`/{id:^\d+$}`, DeleteUser(app))
		})
	})

	return api
}

// urlID parses the numeric {id} URL parameter, answering 400 when it is not one.
func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
		return 0, false
	}
	return id, true
}
