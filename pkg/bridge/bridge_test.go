package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt/mocks"
	"github.com/janael-pinheiro/hvac-bridge/pkg/logging"
	"github.com/janael-pinheiro/hvac-bridge/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// legacyAPI keeps one status per room and records every command it accepts.
type legacyAPI struct {
	lock     sync.Mutex
	status   map[string]string
	commands []string
}

func (a *legacyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.lock.Lock()
	defer a.lock.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	room := parts[len(parts)-2]
	if r.Method == http.MethodPost {
		var body struct {
			Command string `json:"command"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.commands = append(a.commands, room+":"+body.Command)
		if body.Command == "activate" {
			a.status[room] = "active"
		} else {
			a.status[room] = "inactive"
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"room": room, "status": a.status[room]})
}

func (a *legacyAPI) sent() []string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]string(nil), a.commands...)
}

func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().String()
}

func TestBridgeActivatesHotRoomEndToEnd(t *testing.T) {
	api := &legacyAPI{status: map[string]string{"room1": "inactive", "room2": "inactive"}}
	backend := httptest.NewServer(api)
	defer backend.Close()

	conf := utils.DefaultBridgeConfig()
	conf.Rooms = []string{"room1", "room2"}
	conf.Backend.BaseURL = backend.URL + "/api/hvac"
	conf.Backend.RetryDelay = entities.Duration{Duration: time.Millisecond}
	conf.Control.PollInterval = entities.Duration{Duration: 10 * time.Millisecond}
	conf.Status.Listen = freeAddress(t)

	var deliver func(mqtt.InMsg)
	messaging := new(mocks.MessagingMock)
	messaging.On("Subscribe", mqtt.TemperatureTopicFilter, mock.Anything).
		Run(func(args mock.Arguments) { deliver = args.Get(1).(func(mqtt.InMsg)) }).
		Return(nil)
	messaging.On("Publish", "building/room1/hvac/cmd", mqtt.PayloadOn).Return(nil)
	messaging.On("Connected").Return(true)

	var logs bytes.Buffer
	b := newBridge(conf, logging.NewLogrus("debug", logging.FormatText, &lockedWriter{w: &logs}), messaging, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return b.Snapshot()["room1"].HVACActive == entities.ActiveOff
	}, 2*time.Second, 5*time.Millisecond)

	deliver(mqtt.InMsg{Topic: "building/room1/temperature", Payload: []byte("31.5")})
	deliver(mqtt.InMsg{Topic: "building/room2/temperature", Payload: []byte("22")})

	require.Eventually(t, func() bool {
		return b.Snapshot()["room1"].HVACActive == entities.ActiveOn
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"room1:activate"}, api.sent())
	assert.Equal(t, entities.ActiveOff, b.Snapshot()["room2"].HVACActive)

	resp, err := http.Get("http://" + conf.Status.Listen + "/api/status")
	require.NoError(t, err)
	var status entities.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, 31.5, *status["room1"].Temperature)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("bridge did not stop")
	}
	messaging.AssertCalled(t, "Publish", "building/room1/hvac/cmd", mqtt.PayloadOn)
}

// recordingBroker accepts events while started and rejects them once stopped.
type recordingBroker struct {
	lock      sync.Mutex
	started   bool
	stopped   bool
	published map[string]int
	rejected  int
}

func (e *recordingBroker) Start(ctx context.Context) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.started = true
}

func (e *recordingBroker) Stop() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.stopped = true
	return nil
}

func (e *recordingBroker) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error {
	time.Sleep(time.Millisecond)
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.started || e.stopped {
		e.rejected++
		return errors.New("event broker connection closed")
	}
	e.published[key]++
	return nil
}

func (e *recordingBroker) isStarted() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.started
}

func TestBridgeWhenStoppedThenQueuedEventsReachEventBroker(t *testing.T) {
	const queued = 100
	api := &legacyAPI{status: map[string]string{"room1": "inactive"}}
	backend := httptest.NewServer(api)
	defer backend.Close()

	conf := utils.DefaultBridgeConfig()
	conf.Rooms = []string{"room1"}
	conf.Backend.BaseURL = backend.URL + "/api/hvac"
	conf.Control.PublishActuatorCommands = false
	conf.Status.Listen = freeAddress(t)

	messaging := new(mocks.MessagingMock)
	messaging.On("Subscribe", mqtt.TemperatureTopicFilter, mock.Anything).Return(nil)
	messaging.On("Connected").Return(true)
	broker := &recordingBroker{published: make(map[string]int)}

	var logs bytes.Buffer
	b := newBridge(conf, logging.NewLogrus("debug", logging.FormatText, &lockedWriter{w: &logs}), messaging, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	require.Eventually(t, broker.isStarted, 2*time.Second, time.Millisecond)

	for i := 0; i < queued; i++ {
		b.recorder.Record(events.Event{Kind: events.MessageDiscarded, Topic: "building/room9/temperature", Reason: events.ReasonUnknownRoom})
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("bridge did not stop")
	}

	broker.lock.Lock()
	defer broker.lock.Unlock()
	assert.True(t, broker.stopped)
	assert.Zero(t, broker.rejected)
	assert.Equal(t, queued, broker.published[string(events.MessageDiscarded)])
}

type lockedWriter struct {
	lock sync.Mutex
	w    *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.w.Write(p)
}
