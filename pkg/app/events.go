package app

import (
	"time"

	"portmux/pkg/pin"
	"portmux/pkg/port"

	"github.com/womat/debug"
)

// event is the mqtt message of a changed input port.
type event struct {
	Port   string    `json:"port"`
	Pins   []string  `json:"pins"`
	Before string    `json:"before"`
	Now    string    `json:"now"`
	Time   time.Time `json:"time"`
}

// onChange returns the change hook of input port name. It publishes every change
// to <topic>/<name>; a full queue drops the event instead of stalling the scheduler.
func (app *App) onChange(name string, ids []pin.ID) port.ChangeFunc {
	topic := app.config.MQTT.Topic + "/" + name
	pins := names(ids)

	return func(before, now port.Frame) {
		debug.DebugLog.Printf("input port %s changed %v -> %v", name, before, now)

		e := event{
			Port:   name,
			Pins:   pins,
			Before: before.String(),
			Now:    now.String(),
			Time:   time.Now(),
		}
		if err := app.mqtt.Publish(topic, e); err != nil {
			debug.ErrorLog.Printf("publish %s: %v", topic, err)
		}
	}
}
