package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portmux/pkg/app/config"
	"portmux/pkg/pin"
	"portmux/pkg/pinmanager"
	"portmux/pkg/port"
	"portmux/pkg/raspberry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := config.NewConfig()
	c.Ports = []config.PortConfig{
		{Name: "leds", Direction: config.Output, Pins: []int{4, 6, 9}},
		{Name: "buttons", Direction: config.Input, Pins: []int{17, 27}, Bias: "pullup"},
	}
	c.Matrices = []config.MatrixConfig{
		{Name: "display", Selector: []int{12, 13}, Data: []int{20, 21, 22}},
	}
	return c
}

func newTestApp(t *testing.T, c *config.Config) *App {
	a, err := New(c)
	require.NoError(t, err)
	require.NoError(t, a.init())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func request(t *testing.T, a *App, method, target, body string) (int, string) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.web.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestVersion(t *testing.T) {
	a := newTestApp(t, testConfig())

	code, body := request(t, a, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"description":"portmux"`)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, testConfig())

	code, body := request(t, a, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"OccupiedPins":10`)

	a.manager.Scheduler().Cycle()
	_, body = request(t, a, http.MethodGet, "/health", "")
	assert.Contains(t, body, `"Cycles":1`)
	assert.Contains(t, body, `"ActivePorts":`)
}

func TestPorts(t *testing.T) {
	a := newTestApp(t, testConfig())

	code, body := request(t, a, http.MethodGet, "/ports", "")
	require.Equal(t, http.StatusOK, code)

	var list []portResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "buttons", list[0].Name)
	assert.Equal(t, []string{"GPIO17", "GPIO27"}, list[0].Pins)
	assert.Equal(t, "leds", list[1].Name)
	assert.Equal(t, "000", list[1].Frame)

	code, _ = request(t, a, http.MethodGet, "/ports/nothing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSetPin(t *testing.T) {
	a := newTestApp(t, testConfig())

	tests := []struct {
		target string
		code   int
	}{
		{target: "/ports/leds/pins/1/high", code: http.StatusOK},
		{target: "/ports/leds/pins/3/high", code: http.StatusBadRequest},
		{target: "/ports/leds/pins/x/high", code: http.StatusBadRequest},
		{target: "/ports/leds/pins/0/maybe", code: http.StatusBadRequest},
		{target: "/ports/buttons/pins/0/high", code: http.StatusConflict},
		{target: "/ports/nothing/pins/0/high", code: http.StatusNotFound},
	}

	for _, test := range tests {
		code, body := request(t, a, http.MethodPut, test.target, "")
		assert.Equal(t, test.code, code, "%s: %s", test.target, body)
	}

	_, body := request(t, a, http.MethodGet, "/ports/leds", "")
	assert.Contains(t, body, `"frame":"010"`)
}

func TestSetFrame(t *testing.T) {
	a := newTestApp(t, testConfig())

	code, body := request(t, a, http.MethodPut, "/ports/leds/frame", `{"frame":"101"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"frame":"101"`)

	code, _ = request(t, a, http.MethodPut, "/ports/leds/frame", `{"frame":"10"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = request(t, a, http.MethodPut, "/ports/leds/frame", `{"frame":"1x1"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// a frame reaches the pins with the next activation
	a.manager.Scheduler().Cycle()
	emu := a.gpio.(*raspberry.Emulator)
	assert.Equal(t, port.High, emu.Level(pin.GPIO4))
	assert.Equal(t, port.Low, emu.Level(pin.GPIO6))
	assert.Equal(t, port.High, emu.Level(pin.GPIO9))
}

func TestPauseResume(t *testing.T) {
	a := newTestApp(t, testConfig())
	emu := a.gpio.(*raspberry.Emulator)

	code, body := request(t, a, http.MethodPost, "/ports/leds/pause", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"paused":true`)

	a.manager.Scheduler().Cycle()
	assert.Zero(t, emu.Writes(pin.GPIO4), "paused port isn't driven")

	code, _ = request(t, a, http.MethodPost, "/ports/leds/resume", "")
	require.Equal(t, http.StatusOK, code)

	a.manager.Scheduler().Cycle()
	assert.Equal(t, 1, emu.Writes(pin.GPIO4))
}

func TestMatrix(t *testing.T) {
	a := newTestApp(t, testConfig())

	code, body := request(t, a, http.MethodPut, "/matrices/display/cells/1/2/on", "")
	require.Equal(t, http.StatusOK, code, body)

	var m matrixResponse
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 3, m.Columns)
	assert.Equal(t, []string{"000", "001"}, m.Grid)

	code, _ = request(t, a, http.MethodPut, "/matrices/display/cells/2/0/on", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = request(t, a, http.MethodGet, "/matrices/nothing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = request(t, a, http.MethodPost, "/matrices/display/pause", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"paused":true`)
}

func TestMetrics(t *testing.T) {
	a := newTestApp(t, testConfig())
	a.manager.Scheduler().Cycle()

	code, body := request(t, a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "portmux_scheduler_cycles_total 1")
	assert.Contains(t, body, "portmux_occupied_pins 10")
}

func TestDisabledWebservice(t *testing.T) {
	c := testConfig()
	c.Webserver.Webservices["metrics"] = false
	a := newTestApp(t, c)

	code, _ := request(t, a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInputChangeEvents(t *testing.T) {
	a := newTestApp(t, testConfig())
	emu := a.gpio.(*raspberry.Emulator)

	next := func() event {
		select {
		case msg := <-a.mqtt.C:
			assert.Equal(t, "portmux/buttons", msg.Topic)
			var e event
			require.NoError(t, json.Unmarshal(msg.Payload, &e))
			return e
		case <-time.After(time.Second):
			t.Fatal("no event published")
			return event{}
		}
	}

	// both pins float with pull up
	a.manager.Scheduler().Cycle()
	e := next()
	assert.Equal(t, "buttons", e.Port)
	assert.Equal(t, []string{"GPIO17", "GPIO27"}, e.Pins)
	assert.Equal(t, "00", e.Before)
	assert.Equal(t, "11", e.Now)

	// no change, no event
	a.manager.Scheduler().Cycle()
	assert.Empty(t, a.mqtt.C)

	emu.Set(pin.GPIO17, port.Low)
	a.manager.Scheduler().Cycle()
	e = next()
	assert.Equal(t, "11", e.Before)
	assert.Equal(t, "01", e.Now)
}

func TestInitConflict(t *testing.T) {
	c := testConfig()
	c.Matrices[0].Data = []int{20, 21, 4}

	a, err := New(c)
	require.NoError(t, err)
	defer a.Close()

	err = a.init()
	var conflict *pinmanager.PinConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, []pin.ID{pin.GPIO4}, conflict.Conflicts)
}

func TestInitInvalidPin(t *testing.T) {
	c := testConfig()
	c.Ports[0].Pins = []int{4, 40}

	a, err := New(c)
	require.NoError(t, err)
	defer a.Close()

	var invalid *pin.InvalidError
	assert.True(t, errors.As(a.init(), &invalid))
}
