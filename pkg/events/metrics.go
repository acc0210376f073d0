package events

import "github.com/prometheus/client_golang/prometheus"

const namespace = "hvac_bridge"

// Metrics turns events into Prometheus series.
type Metrics struct {
	readings      *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	temperature   *prometheus.GaugeVec
	sensorFault   *prometheus.GaugeVec
	backendFault  *prometheus.GaugeVec
	attempts      *prometheus.CounterVec
	exhausted     *prometheus.CounterVec
	commands      *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Temperature readings received, by room and result.",
		}, []string{"room", "result"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_discarded_total",
			Help:      "Telemetry messages dropped before reaching a room record.",
		}, []string{"reason"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last valid temperature per room.",
		}, []string{"room"}),
		sensorFault: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_fault",
			Help:      "1 while the room sensor is faulted.",
		}, []string{"room"}),
		backendFault: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_fault",
			Help:      "1 while the HVAC backend is faulted for the room.",
		}, []string{"room"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_attempts_total",
			Help:      "Backend requests, by room, operation and result.",
		}, []string{"room", "operation", "result"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_exhausted_total",
			Help:      "Backend calls that ran out of retries.",
		}, []string{"room", "operation"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_applied_total",
			Help:      "HVAC commands accepted by the backend.",
		}, []string{"room", "command"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events lost because the recorder queue was full.",
		}),
	}
	registerer.MustRegister(
		m.readings, m.discarded, m.temperature, m.sensorFault, m.backendFault,
		m.attempts, m.exhausted, m.commands, m.eventsDropped,
	)
	return m
}

// CountDrops wires the recorder's drop counter into the metrics.
func (m *Metrics) CountDrops(recorder *Recorder) {
	recorder.onDrop = m.eventsDropped.Inc
}

func (m *Metrics) Write(event Event) error {
	switch event.Kind {
	case ReadingAccepted:
		m.readings.WithLabelValues(event.Room, "valid").Inc()
		if event.Value != nil {
			m.temperature.WithLabelValues(event.Room).Set(*event.Value)
		}
	case ReadingRejected:
		m.readings.WithLabelValues(event.Room, event.Reason).Inc()
	case MessageDiscarded:
		m.discarded.WithLabelValues(event.Reason).Inc()
	case SensorFaultRaised:
		m.sensorFault.WithLabelValues(event.Room).Set(1)
	case SensorFaultCleared:
		m.sensorFault.WithLabelValues(event.Room).Set(0)
	case BackendAttempt:
		m.attempts.WithLabelValues(event.Room, event.Operation, "failure").Inc()
	case BackendSucceeded:
		m.attempts.WithLabelValues(event.Room, event.Operation, "success").Inc()
	case BackendExhausted:
		m.exhausted.WithLabelValues(event.Room, event.Operation).Inc()
	case BackendFaultRaised:
		m.backendFault.WithLabelValues(event.Room).Set(1)
	case BackendFaultClear:
		m.backendFault.WithLabelValues(event.Room).Set(0)
	case CommandApplied:
		m.commands.WithLabelValues(event.Room, event.Command).Inc()
	}
	return nil
}
