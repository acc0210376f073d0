// Package events records every ingestion and backend outcome without
// blocking the caller. Outputs are logs, Prometheus metrics and, when
// configured, an AMQP exchange.
package events

import "time"

type Kind string

const (
	ReadingAccepted    Kind = "reading.accepted"
	ReadingRejected    Kind = "reading.rejected"
	MessageDiscarded   Kind = "message.discarded"
	SensorFaultRaised  Kind = "fault.sensor.raised"
	SensorFaultCleared Kind = "fault.sensor.cleared"
	BackendAttempt     Kind = "backend.attempt"
	BackendSucceeded   Kind = "backend.succeeded"
	BackendExhausted   Kind = "backend.exhausted"
	BackendFaultRaised Kind = "fault.backend.raised"
	BackendFaultClear  Kind = "fault.backend.cleared"
	CommandApplied     Kind = "command.applied"
)

// Reasons attached to rejected readings and discarded messages.
const (
	ReasonParseError     = "parse_error"
	ReasonRangeError     = "range_error"
	ReasonMalformedTopic = "malformed_topic"
	ReasonUnknownRoom    = "unknown_room"
	ReasonDuplicate      = "duplicate"
)

// Operations performed against the HVAC backend.
const (
	OperationPoll    = "poll"
	OperationCommand = "command"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	Room      string    `json:"room,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Command   string    `json:"command,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Sink accepts events. Implementations must not block.
type Sink interface {
	Record(event Event)
}

// Output is one destination the recorder fans events out to.
type Output interface {
	Write(event Event) error
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Record(Event) {}
