package app

import (
	"database/sql"

	"github.com/go-chi/jwtauth/v5"

	"github.com/mbolis/quick-poll/config"
	"github.com/mbolis/quick-poll/service"
)

type App struct {
	*sql.DB
	*jwtauth.JWTAuth
	config.Config

	Polls *service.PollService
	Users *service.UserService
	Auth  *service.AuthService
}
