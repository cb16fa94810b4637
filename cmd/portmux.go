package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"portmux/pkg/app"
	"portmux/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "pin multiplexer: owns gpio pins, drives output ports and scans matrices",
		Version: app.VERSION,
		Description: "Every configured port and matrix claims its pins exclusively, a second claim of a pin" +
			"\n is refused at startup. A single scheduler then writes output frames, samples input" +
			"\n ports and steps the matrices row by row. Changed inputs are published to mqtt," +
			"\n frames and cells are set with the web services under /ports and /matrices." +
			"\n Backends: emulator, gpio, rpio, gpiod, periph and serial (gpio expander on a tty).",
		UsageText: app.MODULE + " [--config <file>] [--log standard|debug|trace]" +
			"\n\nEXAMPLES:" +
			"\n\trun with the emulator backend and verbose logging" +
			"\n\t\t" + app.MODULE + " -c ./portmux.yaml -l debug" +
			"\n\trun as service" +
			"\n\t\t" + app.MODULE + " --config " + defaultConfigFile,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "read ports and matrices from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` overrides debug.flag of the config file (standard|debug|trace)"},
		},
		Action: func(*cli.Context) error {
			return run(cfg)
		},
	}
	sort.Sort(cli.FlagsByName(cliApp.Flags))

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		os.Exit(1)
	}
}

// run starts the multiplexer and blocks until SIGINT or SIGTERM arrives or the web server stops.
func run(cfg *config.Config) error {
	if err := cfg.LoadConfig(); err != nil {
		return err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() { _ = cfg.Debug.File.Close() }()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("releasing pins of %s", app.Version())
		_ = a.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug.InfoLog.Printf("%s: backend %s, %d ports, %d matrices",
		app.Version(), cfg.Backend, len(cfg.Ports), len(cfg.Matrices))
	if err = a.Run(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		debug.InfoLog.Print("signal received, stopping")
	case <-a.Shutdown():
		debug.WarningLog.Print("web server stopped, stopping")
	}
	return nil
}
