package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type sinkSpy struct {
	lock   sync.Mutex
	events []events.Event
}

func (s *sinkSpy) Record(event events.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, event)
}

func (s *sinkSpy) ofKind(kind events.Kind) []events.Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	var found []events.Event
	for _, event := range s.events {
		if event.Kind == kind {
			found = append(found, event)
		}
	}
	return found
}

type backendMock struct {
	mock.Mock
}

func (m *backendMock) PollStatus(ctx context.Context, room string) (entities.ActiveState, error) {
	args := m.Called(room)
	return args.Get(0).(entities.ActiveState), args.Error(1)
}

func (m *backendMock) SendCommand(ctx context.Context, room string, activate bool) error {
	return m.Called(room, activate).Error(0)
}

func controlConfig() entities.ControlConfig {
	return entities.ControlConfig{
		PollInterval:            entities.Duration{Duration: 10 * time.Millisecond},
		ActivationThreshold:     30,
		InvalidReadingLimit:     3,
		MinValidTemperature:     0,
		MaxValidTemperature:     50,
		RecoveryPollInterval:    entities.Duration{Duration: 10 * time.Second},
		PublishActuatorCommands: true,
	}
}
