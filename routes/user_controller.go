package routes

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/routes/middlewares"
	"github.com/mbolis/quick-poll/service"
)

type createUserRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"nationalId"`
	// CPF is accepted as an alias of NationalID.
	CPF string `json:"cpf"`
}

func CreateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createUserRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if req.NationalID == "" {
			req.NationalID = req.CPF
		}

		user, err := app.Users.CreateUser(r.Context(), req.Name, req.NationalID)
		if err != nil {
			httpx.Error(w, r, "user.create", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func ListUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := app.Users.ListUsers(r.Context())
		if err != nil {
			httpx.Error(w, r, "user.list", err)
			return
		}
		render.JSON(w, r, users)
	}
}

func GetUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := urlID(w, r)
		if !ok {
			return
		}

		user, err := app.Users.GetUser(r.Context(), userID)
		if err != nil {
			httpx.Error(w, r, "user.get", err)
			return
		}
		render.JSON(w, r, user)
	}
}

type updateUserRequest struct {
	Name string `json:"name"`
}

// UpdateUser renames a user. Users may rename themselves; admins anyone.
func UpdateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := urlID(w, r)
		if !ok {
			return
		}

		principal, _ := middlewares.PrincipalFrom(r.Context())
		if err := service.CanActFor(principal, userID); err != nil {
			httpx.Error(w, r, "user.update.owner", err)
			return
		}

		req := updateUserRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		user, err := app.Users.UpdateUserName(r.Context(), userID, req.Name)
		if err != nil {
			httpx.Error(w, r, "user.update", err)
			return
		}
		render.JSON(w, r, user)
	}
}

func DeleteUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := urlID(w, r)
		if !ok {
			return
		}

		err := app.Users.DeleteUser(r.Context(), userID)
		if err != nil {
			httpx.Error(w, r, "user.delete", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
