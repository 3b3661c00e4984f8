package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
)

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		err := app.DB.PingContext(ctx)
		if err != nil {
			httpx.LogInternalError(w, r, "health.db_ping", err)
			return
		}

		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}
