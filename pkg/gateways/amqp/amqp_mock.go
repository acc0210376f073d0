package amqp

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type AmqpMock struct {
	mock.Mock
}

func (m *AmqpMock) Start(ctx context.Context) {}

func (m *AmqpMock) Stop() error { return nil }

func (m *AmqpMock) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error {
	args := m.Called(exchange, exchangeType, key, data)
	return args.Error(0)
}
