package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fmeaflow/internal/mail"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// SMTPProbe checks outbound connectivity without sending.
type SMTPProbe func(context.Context, model.EmailSetting) error

// ConnectionTest reports the outcome of probing both mail directions.
type ConnectionTest struct {
	SMTPOK    bool   `json:"smtp_ok"`
	SMTPError string `json:"smtp_error,omitempty"`
	IMAPOK    bool   `json:"imap_ok"`
	IMAPError string `json:"imap_error,omitempty"`
}

// SettingsService manages the singleton email configuration row and the
// connectivity test behind the settings screen.
type SettingsService struct {
	repo      repository.SettingsRepository
	probeSMTP SMTPProbe
	dialInbox InboxDialer
}

func NewSettingsService(repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:      repo,
		probeSMTP: mail.ProbeSMTP,
		dialInbox: func(cfg model.EmailSetting) (mail.Inbox, error) {
			return mail.DialInbox(cfg)
		},
	}
}

// Get returns the stored settings; ErrMailNotConfigured when never saved.
func (s *SettingsService) Get(ctx context.Context) (*model.EmailSetting, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMailNotConfigured
		}
		return nil, fmt.Errorf("load email settings: %w", err)
	}
	return cfg, nil
}

// Save validates and upserts the settings row.
func (s *SettingsService) Save(ctx context.Context, cfg *model.EmailSetting) error {
	if cfg.SenderEmail != "" && !model.ValidEmail(cfg.SenderEmail) {
		return fmt.Errorf("%w: sender email", ErrInvalidInput)
	}
	if cfg.SMTPHost != "" && (cfg.SMTPPort < 1 || cfg.SMTPPort > 65535) {
		return fmt.Errorf("%w: smtp port", ErrInvalidInput)
	}
	if cfg.IMAPHost != "" && (cfg.IMAPPort < 1 || cfg.IMAPPort > 65535) {
		return fmt.Errorf("%w: imap port", ErrInvalidInput)
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save email settings: %w", err)
	}
	return nil
}

// Test probes both directions with the stored settings. An unconfigured
// direction is reported as a failure message, not an error.
func (s *SettingsService) Test(ctx context.Context) (*ConnectionTest, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrMailNotConfigured) {
			return &ConnectionTest{
				SMTPError: "not configured",
				IMAPError: "not configured",
			}, nil
		}
		return nil, err
	}

	res := &ConnectionTest{}
	if !cfg.SenderConfigured() {
		res.SMTPError = "not configured"
	} else if err := s.probeSMTP(ctx, *cfg); err != nil {
		res.SMTPError = err.Error()
	} else {
		res.SMTPOK = true
	}

	if !cfg.ReceiverConfigured() {
		res.IMAPError = "not configured"
	} else if inbox, err := s.dialInbox(*cfg); err != nil {
		res.IMAPError = err.Error()
	} else {
		inbox.Close()
		res.IMAPOK = true
	}
	return res, nil
}
