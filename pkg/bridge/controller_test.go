package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt/mocks"
	"github.com/janael-pinheiro/hvac-bridge/pkg/state"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var errBackendDown = errors.New("backend down")

type controllerSuite struct {
	suite.Suite
	table      *state.Table
	backend    *backendMock
	actuators  *mocks.PublisherMock
	sink       *sinkSpy
	controller *Controller
	ctx        context.Context
}

func (s *controllerSuite) SetupTest() {
	s.table = state.NewTable([]string{"room2", "room1", "room3"}, 3)
	s.backend = new(backendMock)
	s.actuators = new(mocks.PublisherMock)
	s.sink = &sinkSpy{}
	s.controller = NewController(s.table, s.backend, s.actuators, controlConfig(), s.sink, discardLogger())
	s.ctx = context.Background()
}

func (s *controllerSuite) reading(room string, value float64) {
	_, err := s.table.RecordValidReading(entities.Reading{RoomID: room, Value: value, ReceivedAt: time.Now()})
	s.Require().NoError(err)
}

func (s *controllerSuite) commanded(room string, active entities.ActiveState) {
	s.Require().NoError(s.table.SetCommanded(room, active))
}

func (s *controllerSuite) hvac(room string) entities.ActiveState {
	snapshot, err := s.table.Room(room)
	s.Require().NoError(err)
	return snapshot.HVACActive
}

func (s *controllerSuite) TestHotRoomIsActivated() {
	s.reading("room1", 31.5)
	s.commanded("room1", entities.ActiveOff)
	s.backend.On("SendCommand", "room1", true).Return(nil).Once()
	s.actuators.On("PublishCommand", "room1", true).Return(nil).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOn, s.hvac("room1"))
	s.backend.AssertExpectations(s.T())
	s.actuators.AssertExpectations(s.T())
	applied := s.sink.ofKind(events.CommandApplied)
	s.Require().Len(applied, 1)
	s.Equal("activate", applied[0].Command)
}

func (s *controllerSuite) TestThresholdIsExclusive() {
	s.reading("room1", 30)
	s.commanded("room1", entities.ActiveOn)
	s.backend.On("SendCommand", "room1", false).Return(nil).Once()
	s.actuators.On("PublishCommand", "room1", false).Return(nil).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOff, s.hvac("room1"))
	s.backend.AssertExpectations(s.T())
}

func (s *controllerSuite) TestUnknownStateIsResolvedByCommand() {
	s.reading("room1", 20)
	s.backend.On("SendCommand", "room1", false).Return(nil).Once()
	s.actuators.On("PublishCommand", "room1", false).Return(nil).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOff, s.hvac("room1"))
}

func (s *controllerSuite) TestSteadyStateSendsNothing() {
	s.reading("room1", 35)
	s.backend.On("SendCommand", "room1", true).Return(nil).Once()
	s.actuators.On("PublishCommand", "room1", true).Return(nil).Once()

	for i := 0; i < 5; i++ {
		s.controller.Cycle(s.ctx)
	}

	s.backend.AssertNumberOfCalls(s.T(), "SendCommand", 1)
	s.actuators.AssertNumberOfCalls(s.T(), "PublishCommand", 1)
}

func (s *controllerSuite) TestRoomWithoutReadingIsSkipped() {
	s.controller.Cycle(s.ctx)

	s.backend.AssertNotCalled(s.T(), "SendCommand", mock.Anything, mock.Anything)
	s.Equal(entities.ActiveUnknown, s.hvac("room1"))
}

func (s *controllerSuite) TestSensorFaultedRoomIsSkipped() {
	s.reading("room2", 40)
	s.commanded("room2", entities.ActiveOff)
	for i := 0; i < 3; i++ {
		_, _, err := s.table.RecordInvalidReading("room2")
		s.Require().NoError(err)
	}

	s.controller.Cycle(s.ctx)

	s.backend.AssertNotCalled(s.T(), "SendCommand", mock.Anything, mock.Anything)
	s.Equal(entities.ActiveOff, s.hvac("room2"))
}

func (s *controllerSuite) TestBackendFaultedRoomIsSkipped() {
	s.reading("room3", 40)
	s.commanded("room3", entities.ActiveOff)
	_, err := s.table.MarkBackendFailure("room3")
	s.Require().NoError(err)

	s.controller.Cycle(s.ctx)

	s.backend.AssertNotCalled(s.T(), "SendCommand", mock.Anything, mock.Anything)
	s.backend.AssertNotCalled(s.T(), "PollStatus", mock.Anything)
	s.Equal(entities.ActiveOff, s.hvac("room3"))
}

func (s *controllerSuite) TestFailedCommandLeavesStateUnchanged() {
	s.reading("room1", 45)
	s.commanded("room1", entities.ActiveOff)
	s.backend.On("SendCommand", "room1", true).Return(errBackendDown).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOff, s.hvac("room1"))
	s.actuators.AssertNotCalled(s.T(), "PublishCommand", mock.Anything, mock.Anything)
	s.Empty(s.sink.ofKind(events.CommandApplied))
}

func (s *controllerSuite) TestActuatorPublishFailureDoesNotFault() {
	s.reading("room1", 45)
	s.backend.On("SendCommand", "room1", true).Return(nil).Once()
	s.actuators.On("PublishCommand", "room1", true).Return(errors.New("not connected")).Once()

	s.controller.Cycle(s.ctx)

	room, err := s.table.Room("room1")
	s.Require().NoError(err)
	s.Equal(entities.ActiveOn, room.HVACActive)
	s.False(room.APIError)
}

func (s *controllerSuite) TestRoomsAreVisitedInSortedOrder() {
	for _, room := range []string{"room3", "room1", "room2"} {
		s.reading(room, 35)
		s.backend.On("SendCommand", room, true).Return(nil).Once()
		s.actuators.On("PublishCommand", room, true).Return(nil).Once()
	}

	s.controller.Cycle(s.ctx)

	var order []string
	for _, call := range s.backend.Calls {
		order = append(order, call.Arguments.String(0))
	}
	s.Equal([]string{"room1", "room2", "room3"}, order)
}

func (s *controllerSuite) TestSeedPollsEveryRoom() {
	s.backend.On("PollStatus", "room1").Return(entities.ActiveOn, nil).Once()
	s.backend.On("PollStatus", "room2").Return(entities.ActiveUnknown, errBackendDown).Once()
	s.backend.On("PollStatus", "room3").Return(entities.ActiveOff, nil).Once()

	s.controller.Seed(s.ctx)

	s.Equal(entities.ActiveOn, s.hvac("room1"))
	s.Equal(entities.ActiveUnknown, s.hvac("room2"))
	s.Equal(entities.ActiveOff, s.hvac("room3"))
	s.backend.AssertExpectations(s.T())
}

func (s *controllerSuite) TestRecoveryPollWhenDueThenStateRefreshed() {
	s.reading("room1", 35)
	_, err := s.table.MarkBackendFailure("room1")
	s.Require().NoError(err)
	s.controller.now = func() time.Time { return time.Now().Add(time.Minute) }
	s.backend.On("PollStatus", "room1").Return(entities.ActiveOn, nil).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOn, s.hvac("room1"))
	s.backend.AssertNotCalled(s.T(), "SendCommand", mock.Anything, mock.Anything)
	s.backend.AssertExpectations(s.T())
}

func (s *controllerSuite) TestRecoveryPollWhenNotDueThenSkipped() {
	s.reading("room1", 35)
	_, err := s.table.MarkBackendFailure("room1")
	s.Require().NoError(err)

	s.controller.Cycle(s.ctx)

	s.backend.AssertNotCalled(s.T(), "PollStatus", mock.Anything)
}

func (s *controllerSuite) TestRecoveryPollDisabled() {
	conf := controlConfig()
	conf.RecoveryPollInterval = entities.Duration{}
	s.controller = NewController(s.table, s.backend, s.actuators, conf, s.sink, discardLogger())
	s.controller.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := s.table.MarkBackendFailure("room1")
	s.Require().NoError(err)

	s.controller.Cycle(s.ctx)

	s.backend.AssertNotCalled(s.T(), "PollStatus", mock.Anything)
}

func (s *controllerSuite) TestWithoutActuatorsCommandsStillApplied() {
	s.controller = NewController(s.table, s.backend, nil, controlConfig(), s.sink, discardLogger())
	s.reading("room1", 35)
	s.backend.On("SendCommand", "room1", true).Return(nil).Once()

	s.controller.Cycle(s.ctx)

	s.Equal(entities.ActiveOn, s.hvac("room1"))
}

func (s *controllerSuite) TestRunConvergesAndStops() {
	s.backend.On("PollStatus", mock.Anything).Return(entities.ActiveOff, nil)
	s.backend.On("SendCommand", "room2", true).Return(nil).Once()
	s.actuators.On("PublishCommand", "room2", true).Return(nil).Once()
	s.reading("room2", 33)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.controller.Run(ctx)
		close(done)
	}()

	s.Eventually(func() bool { return s.hvac("room2") == entities.ActiveOn }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("controller did not stop")
	}
	s.backend.AssertNumberOfCalls(s.T(), "SendCommand", 1)
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(controllerSuite))
}
