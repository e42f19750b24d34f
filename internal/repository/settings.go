package repository

import (
	"context"

	"fmeaflow/internal/model"
)

// SettingsRepository stores the singleton mail configuration row.
type SettingsRepository interface {
	// Get returns the settings row; sql.ErrNoRows when never configured.
	Get(ctx context.Context) (*model.EmailSetting, error)

	// Save upserts the singleton row.
	Save(ctx context.Context, s *model.EmailSetting) error
}
