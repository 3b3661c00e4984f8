package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/config"
	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/metrics"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/routes"
	"github.com/mbolis/quick-poll/service"
)

func main() {
	// a missing .env is fine, the real environment still applies
	_ = godotenv.Load()

	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	users := service.NewUserService(db)

	if cfg.PromoteAdmin != "" {
		user, err := users.SetRole(context.Background(), cfg.PromoteAdmin, model.RoleAdmin)
		if err != nil {
			log.Fatal("main.promote_admin:", err)
		}
		log.Infof("user %d (%s) is now %s", user.ID, user.Name, user.Role)
		return
	}

	ja := service.NewJWTAuth(cfg.TokenSecret)
	pollMetrics := metrics.NewPollMetrics(prometheus.DefaultRegisterer)

	app := app.App{
		DB:      db,
		JWTAuth: ja,
		Config:  cfg,
		Polls:   service.NewPollService(db, pollMetrics, service.PollOptions{VotesBlocked: cfg.VoteBlocked}),
		Users:   users,
		Auth:    service.NewAuthService(users, ja),
	}
	if cfg.VoteBlocked {
		log.Warnf("voting is blocked, every vote will be rejected")
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("main.server.shutdown: %s", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		// wait for in-flight requests
		<-done
	}
	return err
}
