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

const exerciseColumns = `id, name, seed_slug, created_at, updated_at, deleted_at, synced_at`

func scanExercise(r rowScanner) (*models.Exercise, error) {
	var e models.Exercise
	var created, updated int64
	var deleted, synced sql.NullInt64
	err := r.Scan(&e.ID, &e.Name, &e.SeedSlug, &created, &updated, &deleted, &synced)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	e.DeletedAt = fromMillisPtr(deleted)
	e.SyncedAt = fromMillisPtr(synced)
	return &e, nil
}

func (s *Store) UpsertExercise(ctx context.Context, e *models.Exercise) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exercises (`+exerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			seed_slug = excluded.seed_slug,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			synced_at = excluded.synced_at`,
		e.ID, e.Name, e.SeedSlug,
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt), toMillisPtr(e.DeletedAt), toMillisPtr(e.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert exercise: %w", err)
	}
	s.notify("exercises")
	return nil
}

func (s *Store) GetExercise(ctx context.Context, id string) (*models.Exercise, error) {
	e, err := scanExercise(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	return e, nil
}

func (s *Store) FindExerciseBySeedSlug(ctx context.Context, slug string) (*models.Exercise, error) {
	e, err := scanExercise(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE seed_slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find exercise by seed slug: %w", err)
	}
	return e, nil
}

func (s *Store) FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error) {
	e, err := scanExercise(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find exercise by name: %w", err)
	}
	return e, nil
}

func (s *Store) SetExerciseSeedSlug(ctx context.Context, id, slug string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE exercises SET seed_slug = ? WHERE id = ?`, slug, id)
	if err != nil {
		return fmt.Errorf("set exercise seed slug: %w", err)
	}
	return nil
}

func (s *Store) queryExercises(ctx context.Context, query string, args ...any) ([]models.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (s *Store) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	return s.queryExercises(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY created_at`)
}

func (s *Store) ActiveExercises(ctx context.Context) ([]models.Exercise, error) {
	return s.queryExercises(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE deleted_at IS NULL ORDER BY created_at`)
}

func (s *Store) DirtyExercises(ctx context.Context) ([]models.Exercise, error) {
	return s.queryExercises(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE synced_at IS NULL OR synced_at < updated_at`)
}

func (s *Store) MarkExercisesSynced(ctx context.Context, pushed []models.Exercise, syncedAt time.Time) error {
	for _, e := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE exercises SET synced_at = ? WHERE id = ? AND updated_at <= ?`,
			toMillis(syncedAt), e.ID, toMillis(e.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark exercise synced: %w", err)
		}
	}
	return nil
}

func (s *Store) SoftDeleteExercise(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exercises SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(now), toMillis(now), id)
	if err != nil {
		return fmt.Errorf("soft delete exercise: %w", err)
	}
	s.notify("exercises")
	return nil
}

func (s *Store) DeleteExercise(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("exercises")
	return nil
}

func (s *Store) ClearExerciseSeedSlug(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE exercises SET seed_slug = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear exercise seed slug: %w", err)
	}
	return nil
}

// RemapExerciseRefs rewrites template links and log rows from oldID to newID.
func (s *Store) RemapExerciseRefs(ctx context.Context, oldID, newID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE workout_template_exercises SET exercise_id = ? WHERE exercise_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("remap exercise template refs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE logged_exercises SET exercise_id = ? WHERE exercise_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("remap exercise log refs: %w", err)
	}
	return nil
}
