package mocks

import (
	"context"

	"fmeaflow/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) FindByID(ctx context.Context, id string) (*model.ApprovalToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApprovalToken), args.Error(1)
}

func (m *MockTokenRepository) ListByDocument(ctx context.Context, documentID string) ([]model.ApprovalToken, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ApprovalToken), args.Error(1)
}
