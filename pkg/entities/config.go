package entities

import (
	"fmt"
	"time"
)

// Duration is a time.Duration read from YAML as a Go duration string ("1s", "250ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type MQTTConfig struct {
	Broker         string   `yaml:"broker"`
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	QoS            byte     `yaml:"qos"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	QueueSize      int      `yaml:"queue_size"`
	// CleanSession drops the broker-side session on connect. The default
	// keeps it so unacknowledged QoS 1 deliveries are resent with DUP set.
	CleanSession bool `yaml:"clean_session"`
}

type BackendConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	RetryLimit     int      `yaml:"retry_limit"`
	RetryDelay     Duration `yaml:"retry_delay"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type ControlConfig struct {
	PollInterval            Duration `yaml:"poll_interval"`
	ActivationThreshold     float64  `yaml:"activation_threshold"`
	InvalidReadingLimit     uint     `yaml:"invalid_reading_limit"`
	MinValidTemperature     float64  `yaml:"min_valid_temperature"`
	MaxValidTemperature     float64  `yaml:"max_valid_temperature"`
	RecoveryPollInterval    Duration `yaml:"recovery_poll_interval"`
	PublishActuatorCommands bool     `yaml:"publish_actuator_commands"`
}

type StatusConfig struct {
	Listen            string   `yaml:"listen"`
	BroadcastInterval Duration `yaml:"broadcast_interval"`
}

type EventsConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	Exchange   string `yaml:"exchange"`
	BufferSize int    `yaml:"buffer_size"`
}

type DuplicationConfig struct {
	Enabled              bool    `yaml:"enabled"`
	Capacity             uint    `yaml:"capacity"`
	FalsePositiveRate    float64 `yaml:"false_positive_rate"`
	ResetUsagePercentage float32 `yaml:"reset_usage_percentage"`
}

// BridgeConfig is the static deployment configuration of the bridge.
type BridgeConfig struct {
	Rooms       []string          `yaml:"rooms"`
	RoomsFile   string            `yaml:"rooms_file"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Backend     BackendConfig     `yaml:"backend"`
	Control     ControlConfig     `yaml:"control"`
	Status      StatusConfig      `yaml:"status"`
	Events      EventsConfig      `yaml:"events"`
	Duplication DuplicationConfig `yaml:"duplication"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"`
}
