package amqp

// EventPublisher sends bridge events to the event exchange.
type EventPublisher interface {
	PublishEvent(routingKey string, event interface{}) error
}

type msgPublisher struct {
	amqp     Messaging
	exchange string
}

func NewMsgPublisher(amqp Messaging, exchange string) EventPublisher {
	return &msgPublisher{amqp: amqp, exchange: exchange}
}

// PublishEvent routes the event by kind on a topic exchange so consumers can
// bind to "reading.*" or "backend.*" selectively.
func (mp *msgPublisher) PublishEvent(routingKey string, event interface{}) error {
	return mp.amqp.PublishPersistentMessage(mp.exchange, exchangeTypeTopic, routingKey, event)
}
