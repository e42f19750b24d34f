package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

func submission() repository.Submission {
	docID := uuid.NewString()
	now := time.Now()
	return repository.Submission{
		Document: &model.Document{
			ID:         docID,
			Name:       "Pump Housing FMEA",
			AuthorID:   uuid.NewString(),
			ApproverID: uuid.NewString(),
			Status:     model.StatusUnderReview,
			Version:    "0.2.0",
			Content:    []byte("workbook"),
			ModifiedAt: now,
		},
		Entry: &model.AuditLog{
			DocumentID: docID,
			UserID:     uuid.NewString(),
			Timestamp:  now,
			Field:      "Status",
			OldValue:   "Draft",
			NewValue:   "Under Review",
			Revision:   "0.2.0",
		},
		Tokens: [2]model.ApprovalToken{
			{ID: uuid.NewString(), DocumentID: docID, Action: model.ActionApprove, ExpiresAt: now.Add(time.Hour)},
			{ID: uuid.NewString(), DocumentID: docID, Action: model.ActionReject, ExpiresAt: now.Add(time.Hour)},
		},
	}
}

func TestSubmitForReviewCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowPostgres(db)
	sub := submission()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO approval_tokens").
		WithArgs(sub.Tokens[0].ID, sub.Tokens[0].DocumentID, sub.Tokens[0].Action, sub.Tokens[0].ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO approval_tokens").
		WithArgs(sub.Tokens[1].ID, sub.Tokens[1].DocumentID, sub.Tokens[1].Action, sub.Tokens[1].ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	notified := false
	err := repo.SubmitForReview(context.Background(), sub, func(context.Context) error {
		notified = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, notified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitForReviewRollsBackWhenNotifyFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowPostgres(db)
	sub := submission()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO approval_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO approval_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	sendErr := errors.New("smtp: connection refused")
	err := repo.SubmitForReview(context.Background(), sub, func(context.Context) error {
		return sendErr
	})
	require.ErrorIs(t, err, sendErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDecisionCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowPostgres(db)

	now := time.Now()
	dec := repository.Decision{
		TokenID: uuid.NewString(),
		Document: &model.Document{
			ID:          uuid.NewString(),
			Status:      model.StatusApproved,
			Version:     "1.0.0",
			ApprovedBy:  "Dana Webb",
			CompletedAt: &now,
			Content:     []byte("workbook"),
			ModifiedAt:  now,
		},
		Entry: &model.AuditLog{Field: "Status", NewValue: "Approved", Timestamp: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE approval_tokens SET used = TRUE").
		WithArgs(dec.TokenID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyDecision(context.Background(), dec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDecisionSpentToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowPostgres(db)

	dec := repository.Decision{
		TokenID:  uuid.NewString(),
		Document: &model.Document{ID: uuid.NewString(), Status: model.StatusApproved},
		Entry:    &model.AuditLog{Field: "Status"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE approval_tokens SET used = TRUE").
		WithArgs(dec.TokenID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyDecision(context.Background(), dec)
	require.ErrorIs(t, err, repository.ErrTokenSpent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowPostgres(db)

	now := time.Now()
	doc := &model.Document{ID: uuid.NewString(), Status: model.StatusDraft, Version: "0.2.0", ModifiedAt: now}
	entry := &model.AuditLog{Field: "Status", OldValue: "Under Review", NewValue: "Draft", Timestamp: now}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Finalize(context.Background(), doc, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
