package app

import (
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initDefaultRoutes initializes the applications default routes.
//  These are the routes which always are the same in every application.
//  Things like version, health, ...
func (app *App) initDefaultRoutes() {
	api := app.web.Group("/")
	if app.config.Webserver.Webservices["version"] {
		api.Get("/version", app.HandleVersion())
	}
	if app.config.Webserver.Webservices["health"] {
		api.Get("/health", app.HandleHealth())
	}
	if app.config.Webserver.Webservices["ports"] {
		api.Get("/ports", app.HandlePorts())
		api.Get("/ports/:name", app.HandlePort())
		api.Put("/ports/:name/pins/:index/:level", app.HandleSetPin())
		api.Put("/ports/:name/frame", app.HandleSetFrame())
		api.Post("/ports/:name/pause", app.HandlePause(true))
		api.Post("/ports/:name/resume", app.HandlePause(false))
	}
	if app.config.Webserver.Webservices["matrices"] {
		api.Get("/matrices/:name", app.HandleMatrix())
		api.Put("/matrices/:name/cells/:row/:column/:level", app.HandleSetCell())
		api.Post("/matrices/:name/pause", app.HandleMatrixPause(true))
		api.Post("/matrices/:name/resume", app.HandleMatrixPause(false))
	}
	if app.config.Webserver.Webservices["metrics"] {
		api.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))
	}
}
