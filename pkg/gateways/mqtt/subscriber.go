package mqtt

import "context"

type Subscriber interface {
	SubscribeToTemperatures(ctx context.Context, msgChan chan<- InMsg) error
}

type msgSubscriber struct {
	mqtt Messaging
}

func NewMsgSubscriber(mqtt Messaging) Subscriber {
	return &msgSubscriber{mqtt}
}

// SubscribeToTemperatures forwards every room temperature delivery to
// msgChan. A full channel blocks the client dispatch until there is room or
// ctx ends.
func (ms *msgSubscriber) SubscribeToTemperatures(ctx context.Context, msgChan chan<- InMsg) error {
	return ms.mqtt.Subscribe(TemperatureTopicFilter, func(msg InMsg) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
}
