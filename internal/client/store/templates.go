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

const templateColumns = `id, name, seed_slug, icon, sort_order, created_at, updated_at, synced_at`
const templateExerciseColumns = `id, template_id, exercise_id, seed_slug, sort_order, synced_at`

func scanTemplate(r rowScanner) (*models.WorkoutTemplate, error) {
	var t models.WorkoutTemplate
	var created, updated int64
	var synced sql.NullInt64
	err := r.Scan(&t.ID, &t.Name, &t.SeedSlug, &t.Icon, &t.SortOrder, &created, &updated, &synced)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	t.SyncedAt = fromMillisPtr(synced)
	return &t, nil
}

func scanTemplateExercise(r rowScanner) (*models.TemplateExercise, error) {
	var te models.TemplateExercise
	var synced sql.NullInt64
	err := r.Scan(&te.ID, &te.TemplateID, &te.ExerciseID, &te.SeedSlug, &te.SortOrder, &synced)
	if err != nil {
		return nil, err
	}
	te.SyncedAt = fromMillisPtr(synced)
	return &te, nil
}

func (s *Store) UpsertTemplate(ctx context.Context, t *models.WorkoutTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workout_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			seed_slug = excluded.seed_slug,
			icon = excluded.icon,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at`,
		t.ID, t.Name, t.SeedSlug, t.Icon, t.SortOrder,
		toMillis(t.CreatedAt), toMillis(t.UpdatedAt), toMillisPtr(t.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	s.notify("workout_templates")
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.WorkoutTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workout_templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *Store) FindTemplateBySeedSlug(ctx context.Context, slug string) (*models.WorkoutTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workout_templates WHERE seed_slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find template by seed slug: %w", err)
	}
	return t, nil
}

func (s *Store) FindTemplateByName(ctx context.Context, name string) (*models.WorkoutTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workout_templates WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find template by name: %w", err)
	}
	return t, nil
}

func (s *Store) SetTemplateSeedSlug(ctx context.Context, id, slug string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workout_templates SET seed_slug = ? WHERE id = ?`, slug, id)
	if err != nil {
		return fmt.Errorf("set template seed slug: %w", err)
	}
	return nil
}

func (s *Store) queryTemplates(ctx context.Context, query string, args ...any) ([]models.WorkoutTemplate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error) {
	return s.queryTemplates(ctx, `SELECT `+templateColumns+` FROM workout_templates ORDER BY sort_order, created_at`)
}

func (s *Store) DirtyTemplates(ctx context.Context) ([]models.WorkoutTemplate, error) {
	return s.queryTemplates(ctx, `SELECT `+templateColumns+` FROM workout_templates WHERE synced_at IS NULL OR synced_at < updated_at`)
}

func (s *Store) MarkTemplatesSynced(ctx context.Context, pushed []models.WorkoutTemplate, syncedAt time.Time) error {
	for _, t := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE workout_templates SET synced_at = ? WHERE id = ? AND updated_at <= ?`,
			toMillis(syncedAt), t.ID, toMillis(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark template synced: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workout_templates WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("workout_templates")
	return nil
}

func (s *Store) ClearTemplateSeedSlug(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workout_templates SET seed_slug = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear template seed slug: %w", err)
	}
	return nil
}

// RemapTemplateRefs rewrites links and session references from oldID to newID.
func (s *Store) RemapTemplateRefs(ctx context.Context, oldID, newID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE workout_template_exercises SET template_id = ? WHERE template_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("remap template link refs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE workout_sessions SET template_id = ? WHERE template_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("remap template session refs: %w", err)
	}
	return nil
}

// Template-exercise links. Append-only: dirty means synced_at IS NULL.

func (s *Store) UpsertTemplateExercise(ctx context.Context, te *models.TemplateExercise) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workout_template_exercises (`+templateExerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			template_id = excluded.template_id,
			exercise_id = excluded.exercise_id,
			seed_slug = excluded.seed_slug,
			sort_order = excluded.sort_order,
			synced_at = excluded.synced_at`,
		te.ID, te.TemplateID, te.ExerciseID, te.SeedSlug, te.SortOrder, toMillisPtr(te.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert template exercise: %w", mapConstraintErr(err))
	}
	s.notify("workout_template_exercises")
	return nil
}

func (s *Store) FindTemplateExerciseBySeedSlug(ctx context.Context, slug string) (*models.TemplateExercise, error) {
	te, err := scanTemplateExercise(s.db.QueryRowContext(ctx,
		`SELECT `+templateExerciseColumns+` FROM workout_template_exercises WHERE seed_slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find template exercise by seed slug: %w", err)
	}
	return te, nil
}

func (s *Store) FindTemplateExerciseByPair(ctx context.Context, templateID, exerciseID string) (*models.TemplateExercise, error) {
	te, err := scanTemplateExercise(s.db.QueryRowContext(ctx,
		`SELECT `+templateExerciseColumns+` FROM workout_template_exercises WHERE template_id = ? AND exercise_id = ?`,
		templateID, exerciseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find template exercise by pair: %w", err)
	}
	return te, nil
}

func (s *Store) SetTemplateExerciseSeedSlug(ctx context.Context, id, slug string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workout_template_exercises SET seed_slug = ? WHERE id = ?`, slug, id)
	if err != nil {
		return fmt.Errorf("set template exercise seed slug: %w", err)
	}
	return nil
}

func (s *Store) queryTemplateExercises(ctx context.Context, query string, args ...any) ([]models.TemplateExercise, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select template exercises: %w", err)
	}
	defer rows.Close()

	var result []models.TemplateExercise
	for rows.Next() {
		te, err := scanTemplateExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *te)
	}
	return result, rows.Err()
}

func (s *Store) ListTemplateExercises(ctx context.Context) ([]models.TemplateExercise, error) {
	return s.queryTemplateExercises(ctx, `SELECT `+templateExerciseColumns+` FROM workout_template_exercises ORDER BY sort_order`)
}

func (s *Store) TemplateExercisesByTemplate(ctx context.Context, templateID string) ([]models.TemplateExercise, error) {
	return s.queryTemplateExercises(ctx,
		`SELECT `+templateExerciseColumns+` FROM workout_template_exercises WHERE template_id = ? ORDER BY sort_order`, templateID)
}

func (s *Store) DirtyTemplateExercises(ctx context.Context) ([]models.TemplateExercise, error) {
	return s.queryTemplateExercises(ctx, `SELECT `+templateExerciseColumns+` FROM workout_template_exercises WHERE synced_at IS NULL`)
}

func (s *Store) MarkTemplateExercisesSynced(ctx context.Context, pushed []models.TemplateExercise, syncedAt time.Time) error {
	for _, te := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE workout_template_exercises SET synced_at = ? WHERE id = ? AND synced_at IS NULL`,
			toMillis(syncedAt), te.ID)
		if err != nil {
			return fmt.Errorf("mark template exercise synced: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteTemplateExercise(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workout_template_exercises WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("workout_template_exercises")
	return nil
}

// DeleteTemplateExercisesByTemplate clears a template's links before they are
// rewritten with a new exercise order.
func (s *Store) DeleteTemplateExercisesByTemplate(ctx context.Context, templateID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workout_template_exercises WHERE template_id = ?`, templateID); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("workout_template_exercises")
	return nil
}
