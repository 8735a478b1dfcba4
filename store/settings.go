package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// Settings are operator-editable defaults kept in the single app_settings
// row, mirroring how the UI persists table preferences.
type Settings struct {
	DefaultPageSize int      `json:"default_page_size"`
	ExportFields    []string `json:"export_fields"`
	UsageAPIEnabled bool     `json:"usage_api_enabled"`
}

// LoadSettings reads the settings row.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	var settings Settings
	var fields string
	var usage int
	err := queryRowWithRetry(s.db, func(row *sql.Row) error {
		return row.Scan(&settings.DefaultPageSize, &fields, &usage)
	}, `SELECT default_page_size, coalesce(export_fields,'[]'), usage_api_enabled FROM app_settings WHERE id = 1`)
	if err != nil {
		return settings, err
	}
	settings.UsageAPIEnabled = usage == 1
	if fields != "" {
		_ = json.Unmarshal([]byte(fields), &settings.ExportFields)
	}
	if settings.ExportFields == nil {
		settings.ExportFields = []string{}
	}
	return settings, nil
}

// SaveSettings replaces the settings row.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if !allowedPageSize(settings.DefaultPageSize) {
		settings.DefaultPageSize = defaultPageSize
	}
	fields, _ := json.Marshal(settings.ExportFields)
	usage := 0
	if settings.UsageAPIEnabled {
		usage = 1
	}
	_, err := execWithRetry(s.db, `UPDATE app_settings SET default_page_size = ?, export_fields = ?, usage_api_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		settings.DefaultPageSize, string(fields), usage)
	return err
}
