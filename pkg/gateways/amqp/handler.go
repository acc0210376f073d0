package amqp

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by publishes attempted while the broker is unreachable.
var ErrNotConnected = errors.New("amqp: not connected")

const publishTimeout = 5 * time.Second

// Messaging is the broker surface the event publisher needs.
type Messaging interface {
	Start(ctx context.Context)
	Stop() error
	PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error
}

// Handler keeps one AMQP connection alive for the process lifetime. It
// reconnects with an exponential backoff that never gives up until ctx ends
// or Stop is called.
type Handler struct {
	conn              connection
	log               *logrus.Entry
	lock              sync.Mutex
	connected         bool
	declaredExchanges map[string]struct{}
	newBackOff        func() backoff.BackOff
	cancel            context.CancelFunc
	done              chan struct{}
}

func NewAMQPHandler(conn connection, log *logrus.Entry) *Handler {
	return &Handler{
		conn:              conn,
		log:               log,
		declaredExchanges: make(map[string]struct{}),
		newBackOff:        reconnectionBackOff,
		done:              make(chan struct{}),
	}
}

func reconnectionBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.Multiplier = 1.7
	b.MaxElapsedTime = 0 // never stop trying
	return b
}

// Start connects in the background and returns immediately; publishes fail
// with ErrNotConnected until the first connection succeeds. The connection is
// kept until ctx ends or Stop is called.
func (h *Handler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.lock.Lock()
	h.cancel = cancel
	h.lock.Unlock()
	go h.supervise(ctx)
}

func (h *Handler) supervise(ctx context.Context) {
	defer close(h.done)
	defer func() {
		if err := h.disconnect(); err != nil {
			h.log.WithError(err).Warn("cannot close event broker connection")
		}
	}()
	for {
		// RetryNotify runs the operation once even on a cancelled context.
		if ctx.Err() != nil {
			return
		}
		b := backoff.WithContext(h.newBackOff(), ctx)
		err := backoff.RetryNotify(h.connect, b, func(err error, next time.Duration) {
			h.log.WithError(err).Warnf("cannot connect to event broker, retrying in %s", next)
		})
		if err != nil {
			return
		}
		h.log.Info("connected to event broker")

		closed := h.conn.notifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case reason := <-closed:
			h.setConnected(false)
			h.log.WithField("reason", reason).Warn("event broker connection closed")
		}
	}
}

func (h *Handler) connect() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if err := h.conn.connect(); err != nil {
		return err
	}
	if err := h.conn.createChannel(); err != nil {
		_ = h.conn.close()
		return err
	}
	h.declaredExchanges = make(map[string]struct{})
	h.connected = true
	return nil
}

func (h *Handler) setConnected(connected bool) {
	h.lock.Lock()
	h.connected = connected
	h.lock.Unlock()
}

// Stop ends the supervisor and closes the connection. Publishes fail with
// ErrNotConnected afterwards.
func (h *Handler) Stop() error {
	h.lock.Lock()
	cancel := h.cancel
	h.lock.Unlock()

	if cancel != nil {
		cancel()
		<-h.done
	}
	return h.disconnect()
}

func (h *Handler) disconnect() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.connected {
		return nil
	}
	h.connected = false
	return h.conn.close()
}

func (h *Handler) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.connected || !h.conn.isOpen() {
		return ErrNotConnected
	}

	// Reduces communication with the broker by avoiding redeclaring a known exchange.
	if _, ok := h.declaredExchanges[exchange]; !ok {
		if err := h.conn.exchangeDeclare(exchange, exchangeType); err != nil {
			return errors.Wrap(err, "declare exchange")
		}
		h.declaredExchanges[exchange] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.conn.publish(ctx, exchange, key, data); err != nil {
		return errors.Wrap(err, "publish message")
	}
	return nil
}
