package mocks

import (
	"context"

	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
	"github.com/stretchr/testify/mock"
)

type MessagingMock struct {
	mock.Mock
}

func (m *MessagingMock) Start(ctx context.Context) {}

func (m *MessagingMock) Stop() error { return nil }

func (m *MessagingMock) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MessagingMock) Subscribe(topic string, handler func(mqtt.InMsg)) error {
	args := m.Called(topic, handler)
	return args.Error(0)
}

func (m *MessagingMock) Publish(topic, payload string) error {
	args := m.Called(topic, payload)
	return args.Error(0)
}
