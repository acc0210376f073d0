package mqtt

type Publisher interface {
	PublishCommand(room string, activate bool) error
}

type msgPublisher struct {
	mqtt Messaging
}

func NewMsgPublisher(mqtt Messaging) Publisher {
	return &msgPublisher{mqtt}
}

// PublishCommand tells the room actuator to switch on or off.
func (mp *msgPublisher) PublishCommand(room string, activate bool) error {
	return mp.mqtt.Publish(CommandTopic(room), commandPayload(activate))
}
