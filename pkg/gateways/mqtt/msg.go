package mqtt

import "fmt"

const (
	// TemperatureTopicFilter matches every room temperature topic.
	TemperatureTopicFilter = "building/+/temperature"
	commandTopicFormat     = "building/%s/hvac/cmd"

	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// InMsg is one telemetry delivery handed from the MQTT client to the bridge.
type InMsg struct {
	Topic     string
	Payload   []byte
	MessageID uint16
	Duplicate bool
}

// CommandTopic returns the actuator command topic of a room.
func CommandTopic(room string) string {
	return fmt.Sprintf(commandTopicFormat, room)
}

func commandPayload(activate bool) string {
	if activate {
		return PayloadOn
	}
	return PayloadOff
}
