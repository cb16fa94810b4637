package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned if the configuration file is inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Backend   string          `yaml:"backend"`
	Chip      string          `yaml:"chip"`
	Serial    SerialConfig    `yaml:"serial"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ports     []PortConfig    `yaml:"ports"`
	Matrices  []MatrixConfig  `yaml:"matrices"`
	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	LogLevel   string
	ConfigFile string
}

// SerialConfig defines the serial port of the serial backend
type SerialConfig struct {
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	ReadTimeoutInt int           `yaml:"readtimeout"`
	ReadTimeout    time.Duration `yaml:"-"`
}

// SchedulerConfig defines the activation cycle.
// Interval is the minimum duration of a cycle in µs, 0 polls continuously.
type SchedulerConfig struct {
	IntervalInt int           `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
	AutoPause   bool          `yaml:"autopause"`
}

// PortConfig defines a port. Direction is input or output, Bias (input only) is pullup, pulldown or none.
type PortConfig struct {
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"`
	Pins      []int  `yaml:"pins"`
	Bias      string `yaml:"bias"`
	Paused    bool   `yaml:"paused"`
}

// MatrixConfig defines a matrix output. Rows and Columns default to the pin counts.
type MatrixConfig struct {
	Name            string `yaml:"name"`
	Selector        []int  `yaml:"selector"`
	Data            []int  `yaml:"data"`
	SelectorDemuxed bool   `yaml:"selectordemuxed"`
	DataDemuxed     bool   `yaml:"datademuxed"`
	Rows            int    `yaml:"rows"`
	Columns         int    `yaml:"columns"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

const (
	Input  = "input"
	Output = "output"
)

func NewConfig() *Config {
	return &Config{
		Backend: "emulator",
		Chip:    "gpiochip0",
		Serial: SerialConfig{
			Baud:           115200,
			ReadTimeoutInt: 100,
		},
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version":  true,
				"health":   true,
				"ports":    true,
				"matrices": true,
				"metrics":  true,
			},
		},
		MQTT: MQTTConfig{
			Topic: "portmux",
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Scheduler.Interval = time.Duration(c.Scheduler.IntervalInt) * time.Microsecond
	c.Serial.ReadTimeout = time.Duration(c.Serial.ReadTimeoutInt) * time.Millisecond

	return c.Validate()
}

// Validate checks names and directions of ports and matrices. Pins are checked when they're registered.
func (c *Config) Validate() error {
	names := map[string]bool{}
	unique := func(name string) error {
		switch {
		case name == "":
			return fmt.Errorf("%w: port or matrix without name", ErrInvalidConfig)
		case names[name]:
			return fmt.Errorf("%w: name %q used twice", ErrInvalidConfig, name)
		}
		names[name] = true
		return nil
	}

	for _, p := range c.Ports {
		if err := unique(p.Name); err != nil {
			return err
		}
		if p.Direction != Input && p.Direction != Output {
			return fmt.Errorf("%w: port %q: direction %q", ErrInvalidConfig, p.Name, p.Direction)
		}
		if p.Bias != "" && p.Direction != Input {
			return fmt.Errorf("%w: port %q: bias of an output port", ErrInvalidConfig, p.Name)
		}
	}

	for _, m := range c.Matrices {
		if err := unique(m.Name); err != nil {
			return err
		}
	}

	switch c.Backend {
	case "", "emulator", "gpio", "rpio", "gpiod", "periph", "serial":
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
