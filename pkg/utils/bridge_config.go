package utils

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/pkg/errors"
)

// DefaultBridgeConfig returns the configuration every deployment starts from.
func DefaultBridgeConfig() entities.BridgeConfig {
	return entities.BridgeConfig{
		MQTT: entities.MQTTConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       "hvac-bridge",
			QoS:            1,
			ReconnectDelay: entities.Duration{Duration: 2 * time.Second},
			QueueSize:      256,
		},
		Backend: entities.BackendConfig{
			BaseURL:        "http://localhost:5000/api/hvac",
			RetryLimit:     3,
			RetryDelay:     entities.Duration{Duration: time.Second},
			RequestTimeout: entities.Duration{Duration: 2 * time.Second},
		},
		Control: entities.ControlConfig{
			PollInterval:            entities.Duration{Duration: time.Second},
			ActivationThreshold:     30.0,
			InvalidReadingLimit:     3,
			MinValidTemperature:     0,
			MaxValidTemperature:     50,
			RecoveryPollInterval:    entities.Duration{Duration: 10 * time.Second},
			PublishActuatorCommands: true,
		},
		Status: entities.StatusConfig{
			Listen:            ":8080",
			BroadcastInterval: entities.Duration{Duration: 2 * time.Second},
		},
		Events: entities.EventsConfig{
			Exchange:   "hvac.events",
			BufferSize: 1024,
		},
		Duplication: entities.DuplicationConfig{
			Enabled:              true,
			Capacity:             100000,
			FalsePositiveRate:    0.01,
			ResetUsagePercentage: 75,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadBridgeConfig reads the YAML file at path over the defaults, applies
// HVAC_BRIDGE_* environment overrides and validates the result.
func LoadBridgeConfig(path string) (entities.BridgeConfig, error) {
	conf := DefaultBridgeConfig()
	if path != "" {
		var err error
		conf, err = ConfigurationParser(path, conf)
		if err != nil {
			return conf, errors.Wrapf(err, "parse configuration %s", path)
		}
	}

	if conf.RoomsFile != "" {
		roomsFile := conf.RoomsFile
		if !filepath.IsAbs(roomsFile) && path != "" {
			roomsFile = filepath.Join(filepath.Dir(path), roomsFile)
		}
		rooms, err := ConfigurationParser(roomsFile, []string{})
		if err != nil {
			return conf, errors.Wrapf(err, "parse rooms file %s", roomsFile)
		}
		conf.Rooms = append(conf.Rooms, rooms...)
	}

	if err := applyEnvironmentOverrides(&conf); err != nil {
		return conf, errors.Wrap(err, "environment override")
	}

	if err := Validate(conf); err != nil {
		return conf, err
	}
	return conf, nil
}

func applyEnvironmentOverrides(conf *entities.BridgeConfig) error {
	overrideList(&conf.Rooms, "ROOMS")
	overrideString(&conf.MQTT.Broker, "MQTT_BROKER")
	overrideString(&conf.MQTT.ClientID, "MQTT_CLIENT_ID")
	overrideString(&conf.MQTT.Username, "MQTT_USERNAME")
	overrideString(&conf.MQTT.Password, "MQTT_PASSWORD")
	overrideString(&conf.Backend.BaseURL, "BACKEND_URL")
	overrideString(&conf.Backend.Username, "BACKEND_USERNAME")
	overrideString(&conf.Backend.Password, "BACKEND_PASSWORD")
	overrideString(&conf.Status.Listen, "STATUS_LISTEN")
	overrideString(&conf.Events.AMQPURL, "AMQP_URL")
	overrideString(&conf.LogLevel, "LOG_LEVEL")
	overrideString(&conf.LogFormat, "LOG_FORMAT")

	overrides := []func() error{
		func() error { return overrideInt(&conf.Backend.RetryLimit, "RETRY_LIMIT") },
		func() error { return overrideDuration(&conf.Backend.RetryDelay.Duration, "RETRY_DELAY") },
		func() error { return overrideDuration(&conf.Backend.RequestTimeout.Duration, "REQUEST_TIMEOUT") },
		func() error { return overrideDuration(&conf.Control.PollInterval.Duration, "POLL_INTERVAL") },
		func() error { return overrideFloat(&conf.Control.ActivationThreshold, "ACTIVATION_THRESHOLD") },
		func() error { return overrideUint(&conf.Control.InvalidReadingLimit, "INVALID_READING_LIMIT") },
		func() error {
			return overrideDuration(&conf.Control.RecoveryPollInterval.Duration, "RECOVERY_POLL_INTERVAL")
		},
		func() error { return overrideBool(&conf.Control.PublishActuatorCommands, "PUBLISH_ACTUATOR_COMMANDS") },
		func() error { return overrideBool(&conf.Duplication.Enabled, "DUPLICATION_FILTER") },
		func() error { return overrideBool(&conf.MQTT.CleanSession, "MQTT_CLEAN_SESSION") },
	}
	for _, override := range overrides {
		if err := override(); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the bridge cannot start with.
func Validate(conf entities.BridgeConfig) error {
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(conf.Rooms) == 0 {
		report("rooms: at least one room is required")
	}
	seen := make(map[string]struct{}, len(conf.Rooms))
	for _, room := range conf.Rooms {
		if room == "" || strings.ContainsAny(room, "/+#") {
			report("rooms: invalid room id %q", room)
			continue
		}
		if _, ok := seen[room]; ok {
			report("rooms: duplicate room id %q", room)
		}
		seen[room] = struct{}{}
	}

	if conf.MQTT.Broker == "" {
		report("mqtt.broker: required")
	}
	if conf.MQTT.ClientID == "" && !conf.MQTT.CleanSession {
		report("mqtt.client_id: required unless clean_session is set")
	}
	if conf.MQTT.QoS > 2 {
		report("mqtt.qos: must be 0, 1 or 2")
	}
	if conf.MQTT.ReconnectDelay.Duration <= 0 {
		report("mqtt.reconnect_delay: must be positive")
	}
	if conf.MQTT.QueueSize <= 0 {
		report("mqtt.queue_size: must be positive")
	}

	if u, err := url.Parse(conf.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		report("backend.base_url: %q is not an absolute URL", conf.Backend.BaseURL)
	}
	if conf.Backend.RetryLimit < 1 {
		report("backend.retry_limit: must be at least 1")
	}
	if conf.Backend.RetryDelay.Duration < 0 {
		report("backend.retry_delay: must not be negative")
	}
	if conf.Backend.RequestTimeout.Duration <= 0 {
		report("backend.request_timeout: must be positive")
	}

	if conf.Control.PollInterval.Duration <= 0 {
		report("control.poll_interval: must be positive")
	}
	if math.IsNaN(conf.Control.ActivationThreshold) || math.IsInf(conf.Control.ActivationThreshold, 0) {
		report("control.activation_threshold: must be a finite number")
	}
	if conf.Control.InvalidReadingLimit == 0 {
		report("control.invalid_reading_limit: must be at least 1")
	}
	if conf.Control.MinValidTemperature > conf.Control.MaxValidTemperature {
		report("control: min_valid_temperature exceeds max_valid_temperature")
	}
	if conf.Control.RecoveryPollInterval.Duration < 0 {
		report("control.recovery_poll_interval: must not be negative")
	}

	if conf.Status.BroadcastInterval.Duration <= 0 {
		report("status.broadcast_interval: must be positive")
	}
	if conf.Events.BufferSize <= 0 {
		report("events.buffer_size: must be positive")
	}
	if conf.Duplication.Enabled {
		if conf.Duplication.Capacity == 0 {
			report("duplication.capacity: must be positive")
		}
		if conf.Duplication.FalsePositiveRate <= 0 || conf.Duplication.FalsePositiveRate >= 1 {
			report("duplication.false_positive_rate: must be between 0 and 1")
		}
		if conf.Duplication.ResetUsagePercentage <= 0 || conf.Duplication.ResetUsagePercentage > 100 {
			report("duplication.reset_usage_percentage: must be in (0, 100]")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
}
