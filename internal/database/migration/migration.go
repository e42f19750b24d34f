package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id    UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
  name  TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE
);`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name              TEXT        NOT NULL,
  author_id         UUID        NOT NULL REFERENCES users (id),
  approver_id       UUID        REFERENCES users (id),
  status            TEXT        NOT NULL DEFAULT 'Draft'
                                CHECK (status IN ('Draft', 'Under Review', 'Approved')),
  version           TEXT        NOT NULL DEFAULT '0.0.1',
  content           BYTEA,
  storage_path      TEXT,
  fmea_id           TEXT,
  product_part      TEXT,
  project_name      TEXT,
  team              TEXT,
  responsible_party TEXT,
  approved_by       TEXT,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  modified_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  completed_at      TIMESTAMPTZ
);`,
	},
	{
		Name: "create_table_approval_tokens",
		SQL: `CREATE TABLE IF NOT EXISTS approval_tokens (
  id          UUID        PRIMARY KEY,
  document_id UUID        NOT NULL REFERENCES documents (id),
  action      TEXT        NOT NULL CHECK (action IN ('Approve', 'Reject')),
  used        BOOLEAN     NOT NULL DEFAULT FALSE,
  expires_at  TIMESTAMPTZ NOT NULL
);`,
	},
	{
		Name: "create_table_audit_logs",
		SQL: `CREATE TABLE IF NOT EXISTS audit_logs (
  id          BIGSERIAL   PRIMARY KEY,
  document_id UUID        NOT NULL REFERENCES documents (id),
  user_id     UUID        NOT NULL REFERENCES users (id),
  ts          TIMESTAMPTZ NOT NULL DEFAULT now(),
  field       TEXT        NOT NULL,
  old_value   TEXT        NOT NULL DEFAULT '',
  new_value   TEXT        NOT NULL DEFAULT '',
  revision    TEXT        NOT NULL DEFAULT '',
  rationale   TEXT        NOT NULL DEFAULT ''
);`,
	},
	{
		Name: "create_table_email_settings",
		SQL: `CREATE TABLE IF NOT EXISTS email_settings (
  id           SMALLINT PRIMARY KEY CHECK (id = 1),
  smtp_host    TEXT     NOT NULL DEFAULT '',
  smtp_port    INT      NOT NULL DEFAULT 587,
  imap_host    TEXT     NOT NULL DEFAULT '',
  imap_port    INT      NOT NULL DEFAULT 993,
  sender_email TEXT     NOT NULL DEFAULT '',
  sender_name  TEXT     NOT NULL DEFAULT '',
  password     TEXT     NOT NULL DEFAULT '',
  use_tls      BOOLEAN  NOT NULL DEFAULT TRUE
);`,
	},
	{
		Name: "create_index_documents_author",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_author ON documents (author_id);`,
	},
	{
		Name: "create_index_documents_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);`,
	},
	{
		Name: "create_index_audit_logs_document_ts",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_logs_document_ts ON audit_logs (document_id, ts DESC);`,
	},
	{
		Name: "create_index_approval_tokens_document",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_approval_tokens_document ON approval_tokens (document_id);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
