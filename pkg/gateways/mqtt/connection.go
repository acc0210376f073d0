package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/pkg/errors"
)

const (
	connectTimeout    = 5 * time.Second
	operationTimeout  = 5 * time.Second
	disconnectQuiesce = 250
)

type connection interface {
	connect() error
	subscribe(topic string, qos byte, handler func(InMsg)) error
	publish(topic string, qos byte, retained bool, payload string) error
	lost() <-chan error
	disconnect()
}

// PahoConnection wraps a paho client with automatic reconnection turned off;
// reconnection is driven by Handler instead.
type PahoConnection struct {
	client   paho.Client
	lostChan chan error
}

func NewPahoConnection(conf entities.MQTTConfig) *PahoConnection {
	c := &PahoConnection{lostChan: make(chan error, 1)}
	opts := newClientOptions(conf)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		select {
		case c.lostChan <- err:
		default:
		}
	})
	c.client = paho.NewClient(opts)
	return c
}

// newClientOptions keeps the session across reconnects unless configured
// otherwise, so the broker redelivers in-flight QoS 1 messages with DUP set.
func newClientOptions(conf entities.MQTTConfig) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(conf.Broker)
	opts.SetClientID(conf.ClientID)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(conf.CleanSession)
	opts.SetConnectTimeout(connectTimeout)
	return opts
}

func (c *PahoConnection) connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout + time.Second) {
		return errors.New("connect timed out")
	}
	return token.Error()
}

func (c *PahoConnection) subscribe(topic string, qos byte, handler func(InMsg)) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(InMsg{
			Topic:     msg.Topic(),
			Payload:   msg.Payload(),
			MessageID: msg.MessageID(),
			Duplicate: msg.Duplicate(),
		})
	})
	if !token.WaitTimeout(operationTimeout) {
		return errors.Errorf("subscribe %s timed out", topic)
	}
	return token.Error()
}

func (c *PahoConnection) publish(topic string, qos byte, retained bool, payload string) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(operationTimeout) {
		return errors.Errorf("publish %s timed out", topic)
	}
	return token.Error()
}

func (c *PahoConnection) lost() <-chan error {
	return c.lostChan
}

func (c *PahoConnection) disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesce)
	}
}
