package postgres

import (
	"context"
	"database/sql"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// SettingsPostgres stores the singleton mail configuration row (id = 1).
type SettingsPostgres struct {
	db *sql.DB
}

// NewSettingsPostgres creates a new SettingsPostgres repository.
func NewSettingsPostgres(db *sql.DB) *SettingsPostgres {
	return &SettingsPostgres{db: db}
}

var _ repository.SettingsRepository = (*SettingsPostgres)(nil)

// Get returns the settings row; sql.ErrNoRows when never configured.
func (r *SettingsPostgres) Get(ctx context.Context) (*model.EmailSetting, error) {
	const q = `
		SELECT smtp_host, smtp_port, imap_host, imap_port,
		       sender_email, sender_name, password, use_tls
		FROM email_settings
		WHERE id = 1
	`
	var s model.EmailSetting
	if err := r.db.QueryRowContext(ctx, q).Scan(
		&s.SMTPHost,
		&s.SMTPPort,
		&s.IMAPHost,
		&s.IMAPPort,
		&s.SenderEmail,
		&s.SenderName,
		&s.Password,
		&s.UseTLS,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the singleton row.
func (r *SettingsPostgres) Save(ctx context.Context, s *model.EmailSetting) error {
	const q = `
		INSERT INTO email_settings
			(id, smtp_host, smtp_port, imap_host, imap_port, sender_email, sender_name, password, use_tls)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			imap_host = EXCLUDED.imap_host,
			imap_port = EXCLUDED.imap_port,
			sender_email = EXCLUDED.sender_email,
			sender_name = EXCLUDED.sender_name,
			password = EXCLUDED.password,
			use_tls = EXCLUDED.use_tls
	`
	_, err := r.db.ExecContext(ctx, q,
		s.SMTPHost,
		s.SMTPPort,
		s.IMAPHost,
		s.IMAPPort,
		s.SenderEmail,
		s.SenderName,
		s.Password,
		s.UseTLS,
	)
	return err
}
