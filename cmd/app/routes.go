package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"

	"ratesvc/internal/api"
	"ratesvc/internal/api/middleware"
	"ratesvc/internal/auth"
	"ratesvc/internal/service"
)

func (app *App) initHTTP(rateService service.RateServiceInterface, enqueuer api.RefreshEnqueuer, authManager *auth.Manager) {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(chimiddleware.Recoverer)

	r.Post("/api/v1/auth/login", api.HandleLogin(authManager))

	r.Route("/api/v1/rates/{provider}", func(r chi.Router) {
		r.Use(auth.Middleware(authManager))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles("user", "admin"))
			r.Get("/", api.HandleGetLatestRates(rateService))
			r.Get("/convert", api.HandleConvert(rateService))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles("admin"))
			r.Get("/historical", api.HandleGetHistoricalRates(rateService))
			r.Post("/refresh", api.HandleRequestRefresh(enqueuer))
		})
	})

	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.rdbCache, app.rdbAsynq))

	if app.cfg.Server.ServeSwagger {
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
	}

	if app.cfg.Server.ServeAsynqmon {
		mon := asynqmon.New(asynqmon.Options{
			RootPath:     "/monitoring/tasks",
			RedisConnOpt: asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr},
		})
		r.Mount(mon.RootPath(), mon)
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
