package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
backend: emulator
scheduler:
  interval: 500
  autopause: true
ports:
  - name: leds
    direction: output
    pins: [4, 6, 9]
  - name: buttons
    direction: input
    pins: [17, 27]
    bias: pullup
matrices:
  - name: display
    selector: [12, 13, 16]
    data: [20, 21, 22, 23]
webserver:
  url: http://127.0.0.1:4010
  webservices:
    metrics: false
mqtt:
  topic: test/portmux
debug:
  file: stdout
  flag: debug
`

func writeConfig(t *testing.T, content string) string {
	name := filepath.Join(t.TempDir(), "portmux.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoadConfig(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, sample)

	require.NoError(t, c.LoadConfig())
	assert.Equal(t, "emulator", c.Backend)
	assert.Equal(t, 500*time.Microsecond, c.Scheduler.Interval)
	assert.True(t, c.Scheduler.AutoPause)
	require.Len(t, c.Ports, 2)
	assert.Equal(t, []int{4, 6, 9}, c.Ports[0].Pins)
	assert.Equal(t, "pullup", c.Ports[1].Bias)
	require.Len(t, c.Matrices, 1)
	assert.Equal(t, []int{20, 21, 22, 23}, c.Matrices[0].Data)
	assert.Equal(t, "http://127.0.0.1:4010", c.Webserver.URL)
	assert.False(t, c.Webserver.Webservices["metrics"])
	assert.Equal(t, "test/portmux", c.MQTT.Topic)
	assert.Equal(t, os.Stdout, c.Debug.File)
	assert.Equal(t, 100*time.Millisecond, c.Serial.ReadTimeout, "defaults survive")
}

func TestLogLevelFlag(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, sample)
	c.Flag.LogLevel = "bogus"

	assert.ErrorIs(t, c.LoadConfig(), ErrInvalidConfig)
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, c.LoadConfig())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "duplicate name", cfg: Config{Ports: []PortConfig{{Name: "a", Direction: Input}}, Matrices: []MatrixConfig{{Name: "a"}}}},
		{name: "missing name", cfg: Config{Ports: []PortConfig{{Direction: Output}}}},
		{name: "bad direction", cfg: Config{Ports: []PortConfig{{Name: "a", Direction: "sideways"}}}},
		{name: "bias on output", cfg: Config{Ports: []PortConfig{{Name: "a", Direction: Output, Bias: "pullup"}}}},
		{name: "bad backend", cfg: Config{Backend: "telepathy"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.ErrorIs(t, test.cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, NewConfig().Validate())
}
