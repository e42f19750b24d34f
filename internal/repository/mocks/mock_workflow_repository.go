package mocks

import (
	"context"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockWorkflowRepository struct {
	mock.Mock
}

// SubmitForReview invokes notify the way the real transaction does, so
// tests observe rollback behavior when notify fails.
func (m *MockWorkflowRepository) SubmitForReview(ctx context.Context, sub repository.Submission, notify func(context.Context) error) error {
	args := m.Called(ctx, sub)
	if err := args.Error(0); err != nil {
		return err
	}
	if notify != nil {
		if err := notify(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockWorkflowRepository) ApplyDecision(ctx context.Context, dec repository.Decision) error {
	args := m.Called(ctx, dec)
	return args.Error(0)
}

func (m *MockWorkflowRepository) Finalize(ctx context.Context, doc *model.Document, entry *model.AuditLog) error {
	args := m.Called(ctx, doc, entry)
	return args.Error(0)
}
