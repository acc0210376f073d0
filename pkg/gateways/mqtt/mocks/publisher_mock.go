package mocks

import "github.com/stretchr/testify/mock"

type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) PublishCommand(room string, activate bool) error {
	args := p.Called(room, activate)
	return args.Error(0)
}
