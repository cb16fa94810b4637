package app

import (
	"net/url"

	"portmux/pkg/app/config"
	"portmux/pkg/matrix"
	"portmux/pkg/mqtt"
	"portmux/pkg/pinmanager"
	"portmux/pkg/raspberry"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// gpio is the driver of the configured backend
	gpio raspberry.GPIO

	// registry collects the scheduler metrics served at /metrics
	registry *prometheus.Registry

	// manager owns the pins and schedules the ports
	manager *pinmanager.Manager

	// ports and matrices are built by init and never change afterwards
	ports    map[string]*namedPort
	matrices map[string]*matrix.Output

	// shutdown is closed when the web server stops listening
	shutdown chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	return &App{
		config:    config,
		urlParsed: u,

		web:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:     mqtt.New(),
		registry: registry,

		ports:    map[string]*namedPort{},
		matrices: map[string]*matrix.Output{},
		shutdown: make(chan struct{}),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	app.manager.Start()
	go app.mqtt.Service()
	go app.runWebServer()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if app.gpio, err = app.openGPIO(); err != nil {
		debug.ErrorLog.Printf("can't open gpio backend %q: %v", app.config.Backend, err)
		return err
	}

	app.manager = pinmanager.New(app.gpio,
		pinmanager.WithInterval(app.config.Scheduler.Interval),
		pinmanager.WithAutoPause(app.config.Scheduler.AutoPause),
		pinmanager.WithRegisterer(app.registry),
	)

	if err = app.initPorts(); err != nil {
		debug.ErrorLog.Printf("can't register ports: %v", err)
		return err
	}

	if err = app.initMatrices(); err != nil {
		debug.ErrorLog.Printf("can't register matrices: %v", err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it accesses the ports and matrices
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// Shutdown is closed once the web server has stopped, e.g. because the listen address is in use.
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

// Close stops the scheduler before the publisher, change hooks run inside the scheduler.
func (app *App) Close() error {
	if app.manager != nil {
		_ = app.manager.Close()
	}

	for name, m := range app.matrices {
		debug.DebugLog.Printf("closing matrix %s", name)
		_ = m.Close()
	}

	if app.web != nil {
		_ = app.web.Shutdown()
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
		_ = app.mqtt.Close()
	}

	if app.gpio != nil {
		_ = app.gpio.Close()
	}
	return nil
}
