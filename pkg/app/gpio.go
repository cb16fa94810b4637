package app

import (
	"fmt"

	"portmux/pkg/app/config"
	"portmux/pkg/matrix"
	"portmux/pkg/pin"
	"portmux/pkg/port"
	"portmux/pkg/raspberry"
	"portmux/pkg/serialbridge"

	"github.com/womat/debug"
)

// namedPort is a configured port, output is nil for input ports.
type namedPort struct {
	name      string
	direction string
	view      interface {
		Definition() []pin.ID
		Frame() port.Frame
		Pause(bool)
		Paused() bool
	}
	output *port.OutputPort
}

// openGPIO opens the configured backend, serial selects the serial gpio expander.
func (app *App) openGPIO() (raspberry.GPIO, error) {
	if app.config.Backend != "serial" {
		return raspberry.Open(app.config.Backend, app.config.Chip)
	}

	b, err := serialbridge.Open(serialbridge.Config{
		Device:      app.config.Serial.Device,
		Baud:        app.config.Serial.Baud,
		ReadTimeout: app.config.Serial.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// initPorts registers the configured ports and adds them to the scheduler.
func (app *App) initPorts() error {
	for _, c := range app.config.Ports {
		ids, err := pin.Ints(c.Pins)
		if err != nil {
			return fmt.Errorf("port %s: %w", c.Name, err)
		}

		p := &namedPort{name: c.Name, direction: c.Direction}
		switch c.Direction {
		case config.Input:
			in, err := app.manager.RegisterInputPort(ids)
			if err != nil {
				return fmt.Errorf("port %s: %w", c.Name, err)
			}

			if c.Bias != "" {
				bias, err := raspberry.ParseBias(c.Bias)
				if err != nil {
					return fmt.Errorf("port %s: %w", c.Name, err)
				}
				if err = app.gpio.SetBias(ids, bias); err != nil {
					return fmt.Errorf("port %s: %w", c.Name, err)
				}
			}

			in.OnChange(app.onChange(c.Name, ids))
			p.view = in
			app.manager.AddActivePort(in)
		default:
			out, err := app.manager.RegisterOutputPort(ids)
			if err != nil {
				return fmt.Errorf("port %s: %w", c.Name, err)
			}

			p.view, p.output = out, out
			app.manager.AddActivePort(out)
		}

		p.view.Pause(c.Paused)
		app.ports[c.Name] = p
		debug.InfoLog.Printf("%s port %s on %s", c.Direction, c.Name, pin.Join(ids))
	}
	return nil
}

// initMatrices registers the configured matrices and adds them to the scheduler.
func (app *App) initMatrices() error {
	for _, c := range app.config.Matrices {
		selector, err := pin.Ints(c.Selector)
		if err != nil {
			return fmt.Errorf("matrix %s: %w", c.Name, err)
		}
		data, err := pin.Ints(c.Data)
		if err != nil {
			return fmt.Errorf("matrix %s: %w", c.Name, err)
		}

		m, err := matrix.Open(app.manager, matrix.Config{
			Selector:        selector,
			Data:            data,
			SelectorDemuxed: c.SelectorDemuxed,
			DataDemuxed:     c.DataDemuxed,
			Rows:            c.Rows,
			Columns:         c.Columns,
		})
		if err != nil {
			return fmt.Errorf("matrix %s: %w", c.Name, err)
		}

		app.manager.AddActivePort(m)
		app.matrices[c.Name] = m
		debug.InfoLog.Printf("matrix %s %dx%d", c.Name, m.Rows(), m.Columns())
	}
	return nil
}
