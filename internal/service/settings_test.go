package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fmeaflow/internal/mail"
	mailmocks "fmeaflow/internal/mail/mocks"
	"fmeaflow/internal/model"
	repomocks "fmeaflow/internal/repository/mocks"
)

func TestSettingsGetUnconfigured(t *testing.T) {
	repo := new(repomocks.MockSettingsRepository)
	repo.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)

	_, err := NewSettingsService(repo).Get(context.Background())
	require.ErrorIs(t, err, ErrMailNotConfigured)
}

func TestSettingsSaveValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.EmailSetting
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  *mailSettings(),
		},
		{
			name: "bad sender address",
			cfg: model.EmailSetting{
				SMTPHost: "smtp.example.com", SMTPPort: 587, SenderEmail: "not-an-address",
			},
			wantErr: true,
		},
		{
			name: "smtp port out of range",
			cfg: model.EmailSetting{
				SMTPHost: "smtp.example.com", SMTPPort: 70000, SenderEmail: "a@b",
			},
			wantErr: true,
		},
		{
			name: "imap port out of range",
			cfg: model.EmailSetting{
				IMAPHost: "imap.example.com", IMAPPort: 0, SenderEmail: "a@b",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(repomocks.MockSettingsRepository)
			if !tt.wantErr {
				repo.On("Save", mock.Anything, mock.Anything).Return(nil)
			}
			err := NewSettingsService(repo).Save(context.Background(), &tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSettingsTestReportsBothDirections(t *testing.T) {
	repo := new(repomocks.MockSettingsRepository)
	repo.On("Get", mock.Anything).Return(mailSettings(), nil)

	inbox := new(mailmocks.MockInbox)
	inbox.On("Close").Return(nil)

	svc := NewSettingsService(repo)
	svc.probeSMTP = func(context.Context, model.EmailSetting) error {
		return errors.New("connection refused")
	}
	svc.dialInbox = func(model.EmailSetting) (mail.Inbox, error) { return inbox, nil }

	res, err := svc.Test(context.Background())
	require.NoError(t, err)
	assert.False(t, res.SMTPOK)
	assert.Contains(t, res.SMTPError, "connection refused")
	assert.True(t, res.IMAPOK)
	inbox.AssertCalled(t, "Close")
}

func TestSettingsTestUnconfigured(t *testing.T) {
	repo := new(repomocks.MockSettingsRepository)
	repo.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)

	res, err := NewSettingsService(repo).Test(context.Background())
	require.NoError(t, err)
	assert.False(t, res.SMTPOK)
	assert.False(t, res.IMAPOK)
	assert.Equal(t, "not configured", res.SMTPError)
	assert.Equal(t, "not configured", res.IMAPError)
}
