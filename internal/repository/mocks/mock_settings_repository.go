package mocks

import (
	"context"

	"fmeaflow/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*model.EmailSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EmailSetting), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, s *model.EmailSetting) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
