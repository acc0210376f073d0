package events

import "github.com/janael-pinheiro/hvac-bridge/pkg/gateways/amqp"

// AMQPOutput forwards events to the event exchange, routed by kind.
type AMQPOutput struct {
	publisher amqp.EventPublisher
}

func NewAMQPOutput(publisher amqp.EventPublisher) *AMQPOutput {
	return &AMQPOutput{publisher: publisher}
}

func (o *AMQPOutput) Write(event Event) error {
	return o.publisher.PublishEvent(string(event.Kind), event)
}
