// Package bridge connects room telemetry arriving over MQTT to the HVAC
// backend: the listener keeps the room table current and the controller
// commands each room from it.
package bridge

import (
	"context"
	"sync"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/amqp"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/hvacapi"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
	"github.com/janael-pinheiro/hvac-bridge/pkg/logging"
	"github.com/janael-pinheiro/hvac-bridge/pkg/state"
	"github.com/janael-pinheiro/hvac-bridge/pkg/status"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

type Bridge struct {
	table      *state.Table
	registry   *prometheus.Registry
	recorder   *events.Recorder
	mqtt       mqtt.Messaging
	amqp       amqp.Messaging
	subscriber mqtt.Subscriber
	listener   *Listener
	controller *Controller
	status     *status.Server
	msgChan    chan mqtt.InMsg
	log        *logrus.Entry
}

// New builds a bridge talking to the broker and backend named in conf.
func New(conf entities.BridgeConfig, logger *logging.Logrus) *Bridge {
	conn := mqtt.NewPahoConnection(conf.MQTT)
	messaging := mqtt.NewMQTTHandler(conn, conf.MQTT.QoS, conf.MQTT.ReconnectDelay.Duration, logger.Get("mqtt"))
	var eventBroker amqp.Messaging
	if conf.Events.AMQPURL != "" {
		eventBroker = amqp.NewAMQPHandler(amqp.NewAmqpConnection(conf.Events.AMQPURL), logger.Get("amqp"))
	}
	return newBridge(conf, logger, messaging, eventBroker)
}

// newBridge wires the components around the given brokers; eventBroker may
// be nil when events are not forwarded.
func newBridge(conf entities.BridgeConfig, logger *logging.Logrus, messaging mqtt.Messaging, eventBroker amqp.Messaging) *Bridge {
	b := &Bridge{
		table:    state.NewTable(conf.Rooms, conf.Control.InvalidReadingLimit),
		registry: prometheus.NewRegistry(),
		mqtt:     messaging,
		amqp:     eventBroker,
		msgChan:  make(chan mqtt.InMsg, conf.MQTT.QueueSize),
		log:      logger.Get("main"),
	}
	b.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := events.NewMetrics(b.registry)
	outputs := []events.Output{events.NewLogOutput(logger.Get("events")), metrics}
	if b.amqp != nil {
		outputs = append(outputs, events.NewAMQPOutput(amqp.NewMsgPublisher(b.amqp, conf.Events.Exchange)))
	}
	b.recorder = events.NewRecorder(conf.Events.BufferSize, logger.Get("events"), outputs...)
	metrics.CountDrops(b.recorder)

	var filter *DuplicationFilter
	if conf.Duplication.Enabled {
		filter = NewDuplicationFilter(conf.Duplication)
	}
	b.subscriber = mqtt.NewMsgSubscriber(messaging)
	b.listener = NewListener(b.table, conf.Control, filter, b.recorder, logger.Get("listener"))

	backend := hvacapi.NewClient(conf.Backend, b.table, b.recorder, logger.Get("hvacapi"))
	var actuators mqtt.Publisher
	if conf.Control.PublishActuatorCommands {
		actuators = mqtt.NewMsgPublisher(messaging)
	}
	b.controller = NewController(b.table, backend, actuators, conf.Control, b.recorder, logger.Get("controller"))

	b.status = status.NewServer(conf.Status, b.table, b.registry, messaging.Connected, logger.Get("status"))
	return b
}

// Snapshot returns a consistent copy of every room record.
func (b *Bridge) Snapshot() entities.Snapshot {
	return b.table.Snapshot()
}

// Run starts every component and blocks until ctx ends. Queued events are
// written out before it returns.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Registered before the recorder so the final flush still reaches the
	// event broker.
	if b.amqp != nil {
		b.amqp.Start(context.Background())
		defer func() {
			if err := b.amqp.Stop(); err != nil {
				b.log.WithError(err).Warn("cannot stop event broker connection")
			}
		}()
	}

	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		b.recorder.Run(recorderCtx)
		close(recorderDone)
	}()
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	if err := b.subscriber.SubscribeToTemperatures(ctx, b.msgChan); err != nil {
		return errors.Wrap(err, "subscribe to temperatures")
	}
	b.mqtt.Start(ctx)

	statusErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		b.listener.Run(ctx, b.msgChan)
	}()
	go func() {
		defer wg.Done()
		b.controller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		statusErr <- b.status.Run(ctx)
	}()

	b.log.Info("bridge started")
	var err error
	select {
	case <-ctx.Done():
	case err = <-statusErr:
		b.log.WithError(err).Error("status server stopped")
		cancel()
	}
	wg.Wait()
	_ = b.mqtt.Stop()
	b.log.Info("bridge stopped")
	return err
}
