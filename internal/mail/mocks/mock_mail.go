package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fmeaflow/internal/mail"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) FetchUnseenReplies(ctx context.Context) ([]mail.InboundMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mail.InboundMessage), args.Error(1)
}

func (m *MockInbox) MarkSeen(ctx context.Context, uid uint32) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockInbox) Close() error {
	args := m.Called()
	return args.Error(0)
}
