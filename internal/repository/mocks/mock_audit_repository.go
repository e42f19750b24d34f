package mocks

import (
	"context"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *model.AuditLog) (*model.AuditLog, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, f repository.AuditFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditLog), args.Error(1)
}
