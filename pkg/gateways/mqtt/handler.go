package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("mqtt: not connected")

// Messaging is the broker surface used by the subscriber and the publisher.
type Messaging interface {
	Start(ctx context.Context)
	Stop() error
	Connected() bool
	Subscribe(topic string, handler func(InMsg)) error
	Publish(topic, payload string) error
}

type subscription struct {
	topic   string
	handler func(InMsg)
}

// Handler keeps the broker session alive. After a connection loss it retries
// with a fixed delay until it reconnects or ctx ends, then restores every
// subscription.
type Handler struct {
	conn           connection
	log            *logrus.Entry
	qos            byte
	reconnectDelay time.Duration
	lock           sync.Mutex
	connected      bool
	subscriptions  []subscription
	done           chan struct{}
}

func NewMQTTHandler(conn connection, qos byte, reconnectDelay time.Duration, log *logrus.Entry) *Handler {
	return &Handler{
		conn:           conn,
		log:            log,
		qos:            qos,
		reconnectDelay: reconnectDelay,
		done:           make(chan struct{}),
	}
}

// Start connects in the background and returns immediately.
func (h *Handler) Start(ctx context.Context) {
	go h.supervise(ctx)
}

func (h *Handler) supervise(ctx context.Context) {
	defer close(h.done)
	defer h.conn.disconnect()

	for {
		b := backoff.WithContext(backoff.NewConstantBackOff(h.reconnectDelay), ctx)
		notify := func(err error, next time.Duration) {
			h.log.WithError(err).Warnf("broker connection failed, retrying in %s", next)
		}
		if err := backoff.RetryNotify(h.connect, b, notify); err != nil {
			return
		}
		h.log.Info("connected to broker")

		select {
		case err := <-h.conn.lost():
			h.setConnected(false)
			h.log.WithError(err).Error("broker connection lost")
		case <-ctx.Done():
			h.setConnected(false)
			return
		}
	}
}

func (h *Handler) connect() error {
	if err := h.conn.connect(); err != nil {
		return errors.Wrap(err, "connect")
	}

	h.lock.Lock()
	subscriptions := append([]subscription(nil), h.subscriptions...)
	h.lock.Unlock()
	for _, s := range subscriptions {
		if err := h.conn.subscribe(s.topic, h.qos, s.handler); err != nil {
			h.conn.disconnect()
			return errors.Wrapf(err, "subscribe %s", s.topic)
		}
	}
	h.setConnected(true)
	return nil
}

func (h *Handler) setConnected(connected bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.connected = connected
}

func (h *Handler) Connected() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.connected
}

// Subscribe registers handler for topic. The subscription is sent now when
// connected and again after every reconnection.
func (h *Handler) Subscribe(topic string, handler func(InMsg)) error {
	h.lock.Lock()
	h.subscriptions = append(h.subscriptions, subscription{topic: topic, handler: handler})
	connected := h.connected
	h.lock.Unlock()

	if !connected {
		return nil
	}
	return h.conn.subscribe(topic, h.qos, handler)
}

func (h *Handler) Publish(topic, payload string) error {
	if !h.Connected() {
		return ErrNotConnected
	}
	return h.conn.publish(topic, h.qos, false, payload)
}

// Stop waits for the supervisor to exit. The supervisor exits once the
// context passed to Start is cancelled.
func (h *Handler) Stop() error {
	<-h.done
	return nil
}
