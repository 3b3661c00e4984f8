package routes

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
)

type loginRequest struct {
	NationalID string `json:"nationalId"`
	CPF        string `json:"cpf"`
}

// Login opens a session for the user owning the national id and hands the
// token back as a cookie.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if req.NationalID == "" {
			req.NationalID = req.CPF
		}

		session, err := app.Auth.LoginByNationalID(r.Context(), req.NationalID)
		if err != nil {
			httpx.Error(w, r, "login", err)
			return
		}

		httpx.SetSessionCookie(w, session.Token, session.ExpiresAt, !app.InsecureCookie)
		log.Debugf("user %d logged in", session.User.ID)
		render.JSON(w, r, session)
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.ClearSessionCookie(w, !app.InsecureCookie)
		w.WriteHeader(http.StatusNoContent)
	}
}
