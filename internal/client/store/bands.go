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

const bandColumns = `id, name, resistance, color, seed_slug, created_at, updated_at, deleted_at, synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBand(r rowScanner) (*models.Band, error) {
	var b models.Band
	var created, updated int64
	var deleted, synced sql.NullInt64
	err := r.Scan(&b.ID, &b.Name, &b.Resistance, &b.Color, &b.SeedSlug, &created, &updated, &deleted, &synced)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	b.DeletedAt = fromMillisPtr(deleted)
	b.SyncedAt = fromMillisPtr(synced)
	return &b, nil
}

// UpsertBand writes the full row, SyncedAt included. Domain writes pass a nil
// SyncedAt so the row shows up as dirty; the sync apply phase passes now().
func (s *Store) UpsertBand(ctx context.Context, b *models.Band) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bands (`+bandColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			resistance = excluded.resistance,
			color = excluded.color,
			seed_slug = excluded.seed_slug,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			synced_at = excluded.synced_at`,
		b.ID, b.Name, b.Resistance, b.Color, b.SeedSlug,
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt), toMillisPtr(b.DeletedAt), toMillisPtr(b.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert band: %w", err)
	}
	s.notify("bands")
	return nil
}

func (s *Store) GetBand(ctx context.Context, id string) (*models.Band, error) {
	b, err := scanBand(s.db.QueryRowContext(ctx, `SELECT `+bandColumns+` FROM bands WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get band: %w", err)
	}
	return b, nil
}

func (s *Store) FindBandBySeedSlug(ctx context.Context, slug string) (*models.Band, error) {
	b, err := scanBand(s.db.QueryRowContext(ctx, `SELECT `+bandColumns+` FROM bands WHERE seed_slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find band by seed slug: %w", err)
	}
	return b, nil
}

// FindBandByAttributes matches a legacy row that predates seed slugs so the
// seeder can adopt it instead of inserting a duplicate.
func (s *Store) FindBandByAttributes(ctx context.Context, name string, resistance float64, color string) (*models.Band, error) {
	b, err := scanBand(s.db.QueryRowContext(ctx,
		`SELECT `+bandColumns+` FROM bands WHERE name = ? AND resistance = ? AND color = ?`,
		name, resistance, color))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find band by attributes: %w", err)
	}
	return b, nil
}

// SetBandSeedSlug attaches a catalog slug to an adopted legacy row.
func (s *Store) SetBandSeedSlug(ctx context.Context, id, slug string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bands SET seed_slug = ? WHERE id = ?`, slug, id)
	if err != nil {
		return fmt.Errorf("set band seed slug: %w", err)
	}
	return nil
}

func (s *Store) queryBands(ctx context.Context, query string, args ...any) ([]models.Band, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select bands: %w", err)
	}
	defer rows.Close()

	var result []models.Band
	for rows.Next() {
		b, err := scanBand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// ListBands returns every row, soft-deleted included (migration needs them).
func (s *Store) ListBands(ctx context.Context) ([]models.Band, error) {
	return s.queryBands(ctx, `SELECT `+bandColumns+` FROM bands ORDER BY created_at`)
}

// ActiveBands excludes soft-deleted rows.
func (s *Store) ActiveBands(ctx context.Context) ([]models.Band, error) {
	return s.queryBands(ctx, `SELECT `+bandColumns+` FROM bands WHERE deleted_at IS NULL ORDER BY created_at`)
}

// DirtyBands returns rows not yet confirmed pushed.
func (s *Store) DirtyBands(ctx context.Context) ([]models.Band, error) {
	return s.queryBands(ctx, `SELECT `+bandColumns+` FROM bands WHERE synced_at IS NULL OR synced_at < updated_at`)
}

// MarkBandsSynced stamps synced_at on exactly the pushed rows, skipping any
// row modified again while the push was in flight.
func (s *Store) MarkBandsSynced(ctx context.Context, pushed []models.Band, syncedAt time.Time) error {
	for _, b := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE bands SET synced_at = ? WHERE id = ? AND updated_at <= ?`,
			toMillis(syncedAt), b.ID, toMillis(b.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark band synced: %w", err)
		}
	}
	return nil
}

func (s *Store) SoftDeleteBand(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bands SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(now), toMillis(now), id)
	if err != nil {
		return fmt.Errorf("soft delete band: %w", err)
	}
	s.notify("bands")
	return nil
}

// DeleteBand hard-deletes; returns common.ErrForeignKeyViolation when the
// band is still referenced by a log row.
func (s *Store) DeleteBand(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bands WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("bands")
	return nil
}

// ClearBandSeedSlug detaches a row from the seed catalog so the unique
// (seedSlug) invariant holds while a pulled canonical row is applied.
func (s *Store) ClearBandSeedSlug(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bands SET seed_slug = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear band seed slug: %w", err)
	}
	return nil
}

// RemapBandRefs points every foreign key at oldID to newID. Used by the seed
// dedup migration and the cross-device collision rule; must run before the
// old row is deleted.
func (s *Store) RemapBandRefs(ctx context.Context, oldID, newID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE logged_exercise_bands SET band_id = ? WHERE band_id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("remap band refs: %w", err)
	}
	return nil
}
