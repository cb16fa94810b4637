package app

import (
	"errors"
	"sort"

	"portmux/pkg/matrix"
	"portmux/pkg/pin"
	"portmux/pkg/port"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

type portResponse struct {
	Name      string   `json:"name"`
	Direction string   `json:"direction"`
	Pins      []string `json:"pins"`
	Frame     string   `json:"frame"`
	Paused    bool     `json:"paused"`
}

type matrixResponse struct {
	Name     string   `json:"name"`
	Rows     int      `json:"rows"`
	Columns  int      `json:"columns"`
	Selector []string `json:"selector"`
	Data     []string `json:"data"`
	Grid     []string `json:"grid"`
	Position int      `json:"position"`
	Paused   bool     `json:"paused"`
}

// runWebServer serves the web services until the server is shut down, Run starts it in its own goroutine.
func (app *App) runWebServer() {
	defer close(app.shutdown)

	if err := app.web.Listen(app.urlParsed.Host); err != nil {
		debug.ErrorLog.Printf("web server %s: %v", app.urlParsed.Host, err)
	}
}

func names(ids []pin.ID) []string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return s
}

func (p *namedPort) response() portResponse {
	return portResponse{
		Name:      p.name,
		Direction: p.direction,
		Pins:      names(p.view.Definition()),
		Frame:     p.view.Frame().String(),
		Paused:    p.view.Paused(),
	}
}

func matrixResponseOf(name string, m *matrix.Output) matrixResponse {
	r := matrixResponse{
		Name:     name,
		Rows:     m.Rows(),
		Columns:  m.Columns(),
		Selector: names(m.Selector().Definition()),
		Data:     names(m.Data().Definition()),
		Position: m.Position(),
		Paused:   m.Paused(),
	}
	for _, row := range m.Grid() {
		r.Grid = append(r.Grid, row.String())
	}
	return r
}

// badRequest maps the errors of ports and matrices to http status codes.
func badRequest(err error) error {
	var index *port.IndexOutOfRangeError
	var length *port.LengthMismatchError
	var state *port.InvalidStateError
	if errors.As(err, &index) || errors.As(err, &length) || errors.As(err, &state) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func (app *App) lookupPort(ctx *fiber.Ctx) (*namedPort, error) {
	p, ok := app.ports[ctx.Params("name")]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown port "+ctx.Params("name"))
	}
	return p, nil
}

func (app *App) lookupOutput(ctx *fiber.Ctx) (*namedPort, error) {
	p, err := app.lookupPort(ctx)
	if err != nil {
		return nil, err
	}
	if p.output == nil {
		return nil, fiber.NewError(fiber.StatusConflict, "port "+p.name+" is an input port")
	}
	return p, nil
}

func (app *App) lookupMatrix(ctx *fiber.Ctx) (*matrix.Output, error) {
	m, ok := app.matrices[ctx.Params("name")]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown matrix "+ctx.Params("name"))
	}
	return m, nil
}

// HandlePorts lists all ports ordered by name.
func (app *App) HandlePorts() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request ports")

		list := make([]portResponse, 0, len(app.ports))
		for _, p := range app.ports {
			list = append(list, p.response())
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		return ctx.JSON(list)
	}
}

func (app *App) HandlePort() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		p, err := app.lookupPort(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(p.response())
	}
}

// HandleSetPin sets one pin of an output port, e.g. PUT /ports/leds/pins/0/high.
// The pin is driven with the next activation of the port.
func (app *App) HandleSetPin() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		p, err := app.lookupOutput(ctx)
		if err != nil {
			return err
		}

		index, err := ctx.ParamsInt("index")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		level, err := port.ParseState(ctx.Params("level"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if _, err = p.output.SetPin(index, level); err != nil {
			return badRequest(err)
		}

		debug.DebugLog.Printf("port %s pin %d set %v", p.name, index, level)
		return ctx.JSON(p.response())
	}
}

// HandleSetFrame replaces the frame of an output port, the body is {"frame":"0110"}.
func (app *App) HandleSetFrame() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		p, err := app.lookupOutput(ctx)
		if err != nil {
			return err
		}

		var body struct {
			Frame string `json:"frame"`
		}
		if err = ctx.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f, err := port.ParseFrame(body.Frame)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err = p.output.SetFrame(f); err != nil {
			return badRequest(err)
		}

		debug.DebugLog.Printf("port %s frame set %v", p.name, f)
		return ctx.JSON(p.response())
	}
}

// HandlePause pauses or resumes the activation of a port.
func (app *App) HandlePause(paused bool) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		p, err := app.lookupPort(ctx)
		if err != nil {
			return err
		}

		p.view.Pause(paused)
		debug.InfoLog.Printf("port %s paused: %v", p.name, paused)
		return ctx.JSON(p.response())
	}
}

func (app *App) HandleMatrix() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		m, err := app.lookupMatrix(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(matrixResponseOf(ctx.Params("name"), m))
	}
}

// HandleSetCell sets one cell of a matrix, e.g. PUT /matrices/display/cells/1/2/on.
func (app *App) HandleSetCell() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		m, err := app.lookupMatrix(ctx)
		if err != nil {
			return err
		}

		row, err := ctx.ParamsInt("row")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		column, err := ctx.ParamsInt("column")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		level, err := port.ParseState(ctx.Params("level"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err = m.SetValue(row, column, level); err != nil {
			return badRequest(err)
		}
		return ctx.JSON(matrixResponseOf(ctx.Params("name"), m))
	}
}

// HandleMatrixPause pauses or resumes the scan of a matrix. A paused matrix keeps its last row driven.
func (app *App) HandleMatrixPause(paused bool) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		m, err := app.lookupMatrix(ctx)
		if err != nil {
			return err
		}

		m.Pause(paused)
		debug.InfoLog.Printf("matrix %s paused: %v", ctx.Params("name"), paused)
		return ctx.JSON(matrixResponseOf(ctx.Params("name"), m))
	}
}
