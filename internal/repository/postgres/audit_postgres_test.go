package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

func TestAuditAppend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditPostgres(db)

	entry := &model.AuditLog{
		DocumentID: uuid.NewString(),
		UserID:     uuid.NewString(),
		Timestamp:  time.Now(),
		Field:      "C12",
		OldValue:   "3",
		NewValue:   "7",
		Revision:   "0.1.0",
		Rationale:  "updated severity",
	}

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(entry.DocumentID, entry.UserID, entry.Timestamp, entry.Field,
			entry.OldValue, entry.NewValue, entry.Revision, entry.Rationale).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	out, err := repo.Append(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.ID)
	// Append never mutates its argument.
	assert.Zero(t, entry.ID)
}

func TestAuditListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditPostgres(db)

	from := time.Now().Add(-24 * time.Hour)
	userID := uuid.NewString()

	cols := []string{"id", "document_id", "user_id", "name", "ts",
		"field", "old_value", "new_value", "revision", "rationale"}
	mock.ExpectQuery("FROM audit_logs l").
		WithArgs(userID, from).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(1), uuid.NewString(), userID, "Ira Holt", time.Now(),
			"Status", "Draft", "Under Review", "0.2.0", "Submitted for review"))

	entries, err := repo.List(context.Background(), repository.AuditFilter{
		UserID: userID,
		From:   &from,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ira Holt", entries[0].UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenPostgres(db)

	id := uuid.NewString()
	expires := time.Now().Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM approval_tokens").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "action", "used", "expires_at"}).
			AddRow(id, uuid.NewString(), "Approve", false, expires))

	tok, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ActionApprove, tok.Action)
	assert.False(t, tok.Used)
}

func TestSettingsRoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsPostgres(db)

	cfg := &model.EmailSetting{
		SMTPHost: "smtp.example.com", SMTPPort: 587,
		IMAPHost: "imap.example.com", IMAPPort: 993,
		SenderEmail: "fmea@example.com", SenderName: "FMEA Workflow",
		Password: "secret", UseTLS: true,
	}

	mock.ExpectExec("INSERT INTO email_settings").
		WithArgs(cfg.SMTPHost, cfg.SMTPPort, cfg.IMAPHost, cfg.IMAPPort,
			cfg.SenderEmail, cfg.SenderName, cfg.Password, cfg.UseTLS).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Save(context.Background(), cfg))

	mock.ExpectQuery("FROM email_settings").
		WillReturnRows(sqlmock.NewRows([]string{
			"smtp_host", "smtp_port", "imap_host", "imap_port",
			"sender_email", "sender_name", "password", "use_tls",
		}).AddRow(cfg.SMTPHost, cfg.SMTPPort, cfg.IMAPHost, cfg.IMAPPort,
			cfg.SenderEmail, cfg.SenderName, cfg.Password, cfg.UseTLS))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
