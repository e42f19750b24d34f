package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fmeaflow/internal/mail"
	mailmocks "fmeaflow/internal/mail/mocks"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	"fmeaflow/internal/storage"
)

type reconcilerFixture struct {
	*workflowFixture
	inbox *mailmocks.MockInbox
	rec   *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		workflowFixture: newWorkflowFixture(),
		inbox:           new(mailmocks.MockInbox),
	}
	f.rec = NewReconciler(f.settings, f.tokenSvc, f.wf)
	f.rec.dial = func(model.EmailSetting) (mail.Inbox, error) { return f.inbox, nil }
	return f
}

func TestPollAndApplyNotConfigured(t *testing.T) {
	f := newReconcilerFixture()
	f.settings.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)

	summary, err := f.rec.PollAndApply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Email receiving is not configured.", summary)
}

func TestPollAndApplyRefusesWithoutTLS(t *testing.T) {
	f := newReconcilerFixture()
	cfg := mailSettings()
	cfg.UseTLS = false
	f.settings.On("Get", mock.Anything).Return(cfg, nil)

	summary, err := f.rec.PollAndApply(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, "TLS is disabled")
	f.inbox.AssertNotCalled(t, "FetchUnseenReplies", mock.Anything)
}

func TestPollAndApplyAppliesApproveReply(t *testing.T) {
	f := newReconcilerFixture()
	f.settings.On("Get", mock.Anything).Return(mailSettings(), nil)

	doc := draftDocument(t)
	doc.Status = model.StatusUnderReview
	doc.Version = "0.2.0"
	doc.ApproverID = "approver-1"

	tok := &model.ApprovalToken{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Action:     model.ActionApprove,
		ExpiresAt:  time.Now().Add(time.Hour),
	}

	f.inbox.On("FetchUnseenReplies", mock.Anything).Return([]mail.InboundMessage{
		{UID: 7, Subject: "RE: " + tok.ID, From: "dana@example.com"},
	}, nil)
	f.inbox.On("MarkSeen", mock.Anything, uint32(7)).Return(nil)
	f.inbox.On("Close").Return(nil)

	f.tokens.On("FindByID", mock.Anything, tok.ID).Return(tok, nil)
	f.docs.On("FindByID", mock.Anything, doc.ID).Return(&model.DocumentWithUsers{
		Document: *doc,
		Approver: &model.User{ID: "approver-1", Name: "Dana Webb"},
	}, nil)
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, nil)
	f.flow.On("ApplyDecision", mock.Anything, mock.MatchedBy(func(dec repository.Decision) bool {
		return dec.TokenID == tok.ID && dec.Document.Status == model.StatusApproved
	})).Return(nil)

	summary, err := f.rec.PollAndApply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Check complete. 1 new approval(s) processed.", summary)
	assert.False(t, f.rec.LastCheckTime().IsZero())

	f.inbox.AssertExpectations(t)
	f.flow.AssertExpectations(t)
}

func TestPollAndApplyLeavesUnmatchedRepliesUnread(t *testing.T) {
	f := newReconcilerFixture()
	f.settings.On("Get", mock.Anything).Return(mailSettings(), nil)

	spent := &model.ApprovalToken{
		ID:         uuid.NewString(),
		DocumentID: "doc-1",
		Action:     model.ActionApprove,
		Used:       true,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	expired := &model.ApprovalToken{
		ID:         uuid.NewString(),
		DocumentID: "doc-2",
		Action:     model.ActionApprove,
		ExpiresAt:  time.Now().Add(-time.Hour),
	}

	f.inbox.On("FetchUnseenReplies", mock.Anything).Return([]mail.InboundMessage{
		{UID: 1, Subject: "RE: please approve my document"},
		{UID: 2, Subject: "RE: " + spent.ID},
		{UID: 3, Subject: "RE: " + expired.ID},
		{UID: 4, Subject: "newsletter"},
	}, nil)
	f.inbox.On("Close").Return(nil)

	f.tokens.On("FindByID", mock.Anything, spent.ID).Return(spent, nil)
	f.tokens.On("FindByID", mock.Anything, expired.ID).Return(expired, nil)

	summary, err := f.rec.PollAndApply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Check complete. 0 new approval(s) processed.", summary)

	// Nothing was redeemed, so every message stays unread.
	f.inbox.AssertNotCalled(t, "MarkSeen", mock.Anything, mock.Anything)
	f.flow.AssertNotCalled(t, "ApplyDecision", mock.Anything, mock.Anything)
}

func TestPollAndApplyIsolatesFailures(t *testing.T) {
	f := newReconcilerFixture()
	f.settings.On("Get", mock.Anything).Return(mailSettings(), nil)

	doc := draftDocument(t)
	doc.Status = model.StatusUnderReview
	doc.ApproverID = "approver-1"

	failing := &model.ApprovalToken{
		ID:         uuid.NewString(),
		DocumentID: "missing-doc",
		Action:     model.ActionReject,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	working := &model.ApprovalToken{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Action:     model.ActionReject,
		ExpiresAt:  time.Now().Add(time.Hour),
	}

	f.inbox.On("FetchUnseenReplies", mock.Anything).Return([]mail.InboundMessage{
		{UID: 1, Subject: "RE: " + failing.ID},
		{UID: 2, Subject: "RE: " + working.ID},
	}, nil)
	f.inbox.On("MarkSeen", mock.Anything, uint32(2)).Return(nil)
	f.inbox.On("Close").Return(nil)

	f.tokens.On("FindByID", mock.Anything, failing.ID).Return(failing, nil)
	f.tokens.On("FindByID", mock.Anything, working.ID).Return(working, nil)
	f.docs.On("FindByID", mock.Anything, "missing-doc").Return(nil, sql.ErrNoRows)
	f.docs.On("FindByID", mock.Anything, doc.ID).Return(&model.DocumentWithUsers{Document: *doc}, nil)
	f.flow.On("ApplyDecision", mock.Anything, mock.MatchedBy(func(dec repository.Decision) bool {
		return dec.TokenID == working.ID && dec.Document.Status == model.StatusDraft
	})).Return(nil)

	summary, err := f.rec.PollAndApply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Check complete. 1 new approval(s) processed.", summary)

	// The reply that errored stays unread for the next pass.
	f.inbox.AssertNotCalled(t, "MarkSeen", mock.Anything, uint32(1))
	f.flow.AssertExpectations(t)
}
