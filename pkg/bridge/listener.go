package bridge

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
	"github.com/janael-pinheiro/hvac-bridge/pkg/state"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrMalformedTopic = errors.New("malformed topic")
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrParseReading   = errors.New("unparsable reading")
	ErrOutOfRange     = errors.New("reading out of range")
	ErrDuplicate      = errors.New("duplicate delivery")

	errIgnoredTopic = errors.New("not a temperature topic")
)

const temperatureSegment = "temperature"

// Listener applies telemetry deliveries to the room table.
type Listener struct {
	table               *state.Table
	sink                events.Sink
	log                 *logrus.Entry
	minValid            float64
	maxValid            float64
	isMessageDuplicated func(mqtt.InMsg) bool
	now                 func() time.Time
}

// NewListener builds a listener. A nil filter disables duplicate detection.
func NewListener(table *state.Table, conf entities.ControlConfig, filter *DuplicationFilter, sink events.Sink, log *logrus.Entry) *Listener {
	l := &Listener{
		table:               table,
		sink:                sink,
		log:                 log,
		minValid:            conf.MinValidTemperature,
		maxValid:            conf.MaxValidTemperature,
		isMessageDuplicated: noDuplication,
		now:                 time.Now,
	}
	if filter != nil {
		l.isMessageDuplicated = filter.IsMessageDuplicated
	}
	return l
}

// Run handles deliveries until ctx ends or msgChan is closed.
func (l *Listener) Run(ctx context.Context, msgChan <-chan mqtt.InMsg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			_ = l.Handle(msg)
		}
	}
}

// Handle applies one delivery. The returned error describes why the delivery
// was not accepted as a valid reading; nil means it was.
func (l *Listener) Handle(msg mqtt.InMsg) error {
	log := l.log.WithField("topic", msg.Topic)

	room, err := roomFromTopic(msg.Topic)
	if errors.Is(err, errIgnoredTopic) {
		log.Debug("ignoring non temperature topic")
		return err
	}
	if err != nil {
		log.WithError(err).Warn("discarding message")
		l.sink.Record(events.Event{Kind: events.MessageDiscarded, Topic: msg.Topic, Reason: events.ReasonMalformedTopic})
		return err
	}
	if !l.table.Has(room) {
		log.WithField("room", room).Warn("discarding message for unknown room")
		l.sink.Record(events.Event{Kind: events.MessageDiscarded, Topic: msg.Topic, Reason: events.ReasonUnknownRoom})
		return errors.Wrap(ErrUnknownEntity, room)
	}
	if l.isMessageDuplicated(msg) {
		log.WithField("room", room).Debug("dropping redelivered message")
		l.sink.Record(events.Event{Kind: events.MessageDiscarded, Room: room, Topic: msg.Topic, Reason: events.ReasonDuplicate})
		return errors.Wrap(ErrDuplicate, room)
	}

	log = log.WithField("room", room)
	value, err := parseReading(msg.Payload, l.minValid, l.maxValid)
	if err != nil {
		l.rejectReading(log, room, msg, err)
		return err
	}

	transition, err := l.table.RecordValidReading(entities.Reading{RoomID: room, Value: value, ReceivedAt: l.now()})
	if err != nil {
		return err
	}
	l.sink.Record(events.Event{Kind: events.ReadingAccepted, Room: room, Topic: msg.Topic, Value: &value})
	if transition == state.Cleared {
		log.Info("sensor fault cleared")
		l.sink.Record(events.Event{Kind: events.SensorFaultCleared, Room: room})
	}
	return nil
}

func (l *Listener) rejectReading(log *logrus.Entry, room string, msg mqtt.InMsg, cause error) {
	reason := events.ReasonParseError
	if errors.Is(cause, ErrOutOfRange) {
		reason = events.ReasonRangeError
	}

	count, transition, err := l.table.RecordInvalidReading(room)
	if err != nil {
		log.WithError(err).Warn("record invalid reading")
		return
	}
	log.WithError(cause).WithField("invalid_readings", count).Warn("invalid reading")
	l.sink.Record(events.Event{Kind: events.ReadingRejected, Room: room, Topic: msg.Topic, Reason: reason})
	if transition == state.Raised {
		log.Error("sensor fault raised")
		l.sink.Record(events.Event{Kind: events.SensorFaultRaised, Room: room})
	}
}

// roomFromTopic extracts the room id from building/<room>/temperature.
// Topics whose third segment is something else belong to other producers
// and are ignored; anything else that is not exactly three segments is
// malformed.
func roomFromTopic(topic string) (string, error) {
	segments := strings.Split(topic, "/")
	if len(segments) >= 3 && segments[2] != temperatureSegment {
		return "", errors.Wrap(errIgnoredTopic, topic)
	}
	if len(segments) != 3 || segments[1] == "" {
		return "", errors.Wrap(ErrMalformedTopic, topic)
	}
	return segments[1], nil
}

func parseReading(payload []byte, min, max float64) (float64, error) {
	raw := strings.TrimSpace(string(payload))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParseReading, "%q", raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < min || value > max {
		return 0, errors.Wrapf(ErrOutOfRange, "%v not in [%v, %v]", value, min, max)
	}
	return value, nil
}
