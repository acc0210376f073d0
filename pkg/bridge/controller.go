package bridge

import (
	"context"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/hvacapi"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
	"github.com/janael-pinheiro/hvac-bridge/pkg/state"
	"github.com/sirupsen/logrus"
)

// Backend is the HVAC control API as seen by the controller.
type Backend interface {
	PollStatus(ctx context.Context, room string) (entities.ActiveState, error)
	SendCommand(ctx context.Context, room string, activate bool) error
}

// Controller drives every room towards the activation its temperature calls
// for. Rooms are handled one at a time in ascending id order.
type Controller struct {
	table                *state.Table
	backend              Backend
	actuators            mqtt.Publisher
	sink                 events.Sink
	log                  *logrus.Entry
	period               time.Duration
	threshold            float64
	recoveryPollInterval time.Duration
	now                  func() time.Time
}

// NewController builds a controller. A nil actuators publisher disables the
// actuator command topic.
func NewController(table *state.Table, backend Backend, actuators mqtt.Publisher, conf entities.ControlConfig, sink events.Sink, log *logrus.Entry) *Controller {
	return &Controller{
		table:                table,
		backend:              backend,
		actuators:            actuators,
		sink:                 sink,
		log:                  log,
		period:               conf.PollInterval.Duration,
		threshold:            conf.ActivationThreshold,
		recoveryPollInterval: conf.RecoveryPollInterval.Duration,
		now:                  time.Now,
	}
}

// Run seeds the commanded state from the backend, then evaluates every room
// each period until ctx ends.
func (c *Controller) Run(ctx context.Context) {
	c.Seed(ctx)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cycle(ctx)
		}
	}
}

// Seed polls the backend once per room. Rooms whose poll fails keep an
// unknown state and are left with a backend fault.
func (c *Controller) Seed(ctx context.Context) {
	for _, room := range c.table.IDs() {
		if ctx.Err() != nil {
			return
		}
		c.poll(ctx, room)
	}
}

// Cycle runs one evaluation pass over every room.
func (c *Controller) Cycle(ctx context.Context) {
	for _, room := range c.table.IDs() {
		if ctx.Err() != nil {
			return
		}
		c.evaluate(ctx, room)
	}
}

func (c *Controller) evaluate(ctx context.Context, room string) {
	log := c.log.WithField("room", room)
	snapshot, err := c.table.Room(room)
	if err != nil {
		log.WithError(err).Warn("read room")
		return
	}

	if snapshot.APIError {
		if c.recoveryDue(snapshot) {
			log.Info("polling backend to recover from fault")
			c.poll(ctx, room)
		}
		return
	}
	if snapshot.SensorError || snapshot.Temperature == nil {
		return
	}

	shouldActivate := *snapshot.Temperature > c.threshold
	if snapshot.HVACActive.Matches(shouldActivate) {
		return
	}

	command := hvacapi.CommandName(shouldActivate)
	if err := c.backend.SendCommand(ctx, room, shouldActivate); err != nil {
		log.WithError(err).WithField("command", command).Warn("hvac command failed")
		return
	}
	if err := c.table.SetCommanded(room, entities.ActiveStateFromBool(shouldActivate)); err != nil {
		log.WithError(err).Warn("store commanded state")
		return
	}
	log.WithFields(logrus.Fields{"command": command, "temperature": *snapshot.Temperature}).Info("hvac command applied")
	c.sink.Record(events.Event{Kind: events.CommandApplied, Room: room, Command: command})

	if c.actuators == nil {
		return
	}
	if err := c.actuators.PublishCommand(room, shouldActivate); err != nil {
		log.WithError(err).Warn("publish actuator command")
	}
}

// recoveryDue reports whether a faulted room has waited long enough since its
// last backend failure to be polled again.
func (c *Controller) recoveryDue(snapshot entities.RoomSnapshot) bool {
	if c.recoveryPollInterval <= 0 {
		return false
	}
	if snapshot.LastAPIFailure == nil {
		return true
	}
	return c.now().Sub(*snapshot.LastAPIFailure) >= c.recoveryPollInterval
}

func (c *Controller) poll(ctx context.Context, room string) {
	log := c.log.WithField("room", room)
	active, err := c.backend.PollStatus(ctx, room)
	if err != nil {
		log.WithError(err).Warn("hvac status poll failed")
		return
	}
	if err := c.table.SetCommanded(room, active); err != nil {
		log.WithError(err).Warn("store polled state")
		return
	}
	log.WithField("hvac", active.String()).Info("hvac status polled")
}
