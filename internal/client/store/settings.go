package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/common"
)

const settingsColumns = `id, weight_unit, keep_screen_awake, updated_at, synced_at`

func scanSettings(r rowScanner) (*models.Settings, error) {
	var st models.Settings
	var awake int
	var updated int64
	var synced sql.NullInt64
	err := r.Scan(&st.ID, &st.WeightUnit, &awake, &updated, &synced)
	if err != nil {
		return nil, err
	}
	st.KeepScreenAwake = awake != 0
	st.UpdatedAt = fromMillis(updated)
	st.SyncedAt = fromMillisPtr(synced)
	return &st, nil
}

func (s *Store) UpsertSettings(ctx context.Context, st *models.Settings) error {
	awake := 0
	if st.KeepScreenAwake {
		awake = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (`+settingsColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weight_unit = excluded.weight_unit,
			keep_screen_awake = excluded.keep_screen_awake,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at`,
		st.ID, st.WeightUnit, awake, toMillis(st.UpdatedAt), toMillisPtr(st.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	s.notify("settings")
	return nil
}

func (s *Store) GetSettings(ctx context.Context, id string) (*models.Settings, error) {
	st, err := scanSettings(s.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *Store) DirtySettings(ctx context.Context) ([]models.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+settingsColumns+` FROM settings WHERE synced_at IS NULL OR synced_at < updated_at`)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	var result []models.Settings
	for rows.Next() {
		st, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

func (s *Store) MarkSettingsSynced(ctx context.Context, pushed []models.Settings, syncedAt time.Time) error {
	for _, st := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE settings SET synced_at = ? WHERE id = ? AND updated_at <= ?`,
			toMillis(syncedAt), st.ID, toMillis(st.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark settings synced: %w", err)
		}
	}
	return nil
}
