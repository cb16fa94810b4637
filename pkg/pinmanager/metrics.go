package pinmanager

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors of a manager and its scheduler.
type Metrics struct {
	Cycles       prometheus.Counter
	Faults       *prometheus.CounterVec
	ActivePorts  prometheus.Gauge
	OccupiedPins prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg, if reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portmux_scheduler_cycles_total",
			Help: "Total number of activation cycles",
		}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portmux_activation_faults_total",
			Help: "Total number of failed port activations",
		}, []string{"kind"}),
		ActivePorts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portmux_active_ports",
			Help: "Number of ports registered for activation",
		}),
		OccupiedPins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portmux_occupied_pins",
			Help: "Number of pins claimed by live occupants",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Cycles, m.Faults, m.ActivePorts, m.OccupiedPins)
	}
	return m
}
