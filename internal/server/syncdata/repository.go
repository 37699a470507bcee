// Package syncdata owns the per-tenant workout rows on the server side and
// the push/pull service over them. The repository runs over dbx.DBTX so the
// service can bind it to a single transaction; the SQL sticks to the portable
// subset shared by PostgreSQL and SQLite (tests run on the latter).
//
// Tenancy never reaches the wire types: every method takes the authenticated
// user id and scopes its statements with it.
package syncdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/dbx"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

type Repository struct {
	db dbx.DBTX
}

func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

// Timestamps are stored as unix milliseconds so recency comparisons stay
// numeric and identical across both engines.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func toMillisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromMillisPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

// checkAffected converts a zero-row guarded upsert into the ownership
// sentinel: the conflict row exists but belongs to another tenant.
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrOwnershipConflict
	}
	return nil
}

// UpsertBand writes one pushed band. Seeded rows match on (user, seed slug)
// so the server-side row id survives; everything else matches on id with the
// tenant guard.
func (r *Repository) UpsertBand(ctx context.Context, userID string, b syncapi.Band) error {
	if b.SeedSlug != nil {
		var existingID string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM bands WHERE user_id = $1 AND seed_slug = $2`,
			userID, *b.SeedSlug).Scan(&existingID)
		switch {
		case err == nil:
			_, uerr := r.db.ExecContext(ctx,
				`UPDATE bands SET name = $1, resistance = $2, color = $3, updated_at = $4, deleted_at = $5
				 WHERE id = $6 AND user_id = $7`,
				b.Name, b.Resistance, b.Color, toMillis(b.UpdatedAt), toMillisPtr(b.DeletedAt),
				existingID, userID)
			if uerr != nil {
				return fmt.Errorf("update seeded band: %w", uerr)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find seeded band: %w", err)
		}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bands (id, user_id, name, resistance, color, seed_slug, created_at, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, resistance = excluded.resistance, color = excluded.color,
			seed_slug = excluded.seed_slug, updated_at = excluded.updated_at, deleted_at = excluded.deleted_at
		 WHERE bands.user_id = excluded.user_id`,
		b.ID, userID, b.Name, b.Resistance, b.Color, b.SeedSlug,
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt), toMillisPtr(b.DeletedAt))
	if err != nil {
		return fmt.Errorf("upsert band: %w", err)
	}
	return checkAffected(res)
}

// ListBands returns the tenant's bands, filtered to updated_at > since when a
// cursor is given. Soft-deleted rows are included; clients need the tombstone.
func (r *Repository) ListBands(ctx context.Context, userID string, since *time.Time) ([]syncapi.Band, error) {
	query := `SELECT id, name, resistance, color, seed_slug, created_at, updated_at, deleted_at
		FROM bands WHERE user_id = $1`
	args := []any{userID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, toMillis(*since))
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bands: %w", err)
	}
	defer rows.Close()

	var out []syncapi.Band
	for rows.Next() {
		var b syncapi.Band
		var created, updated int64
		var deleted sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Name, &b.Resistance, &b.Color, &b.SeedSlug, &created, &updated, &deleted); err != nil {
			return nil, err
		}
		b.CreatedAt = fromMillis(created)
		b.UpdatedAt = fromMillis(updated)
		b.DeletedAt = fromMillisPtr(deleted)
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertSettings writes the per-tenant singleton keyed on (user, id).
func (r *Repository) UpsertSettings(ctx context.Context, userID string, s syncapi.Settings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, user_id, weight_unit, keep_screen_awake, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, id) DO UPDATE SET
			weight_unit = excluded.weight_unit, keep_screen_awake = excluded.keep_screen_awake,
			updated_at = excluded.updated_at`,
		s.ID, userID, s.WeightUnit, s.KeepScreenAwake, toMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (r *Repository) ListSettings(ctx context.Context, userID string) ([]syncapi.Settings, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, weight_unit, keep_screen_awake, updated_at FROM settings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []syncapi.Settings
	for rows.Next() {
		var s syncapi.Settings
		var updated int64
		if err := rows.Scan(&s.ID, &s.WeightUnit, &s.KeepScreenAwake, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt = fromMillis(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertExercise(ctx context.Context, userID string, e syncapi.Exercise) error {
	if e.SeedSlug != nil {
		var existingID string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM exercises WHERE user_id = $1 AND seed_slug = $2`,
			userID, *e.SeedSlug).Scan(&existingID)
		switch {
		case err == nil:
			_, uerr := r.db.ExecContext(ctx,
				`UPDATE exercises SET name = $1, updated_at = $2, deleted_at = $3
				 WHERE id = $4 AND user_id = $5`,
				e.Name, toMillis(e.UpdatedAt), toMillisPtr(e.DeletedAt), existingID, userID)
			if uerr != nil {
				return fmt.Errorf("update seeded exercise: %w", uerr)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find seeded exercise: %w", err)
		}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO exercises (id, user_id, name, seed_slug, created_at, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, seed_slug = excluded.seed_slug,
			updated_at = excluded.updated_at, deleted_at = excluded.deleted_at
		 WHERE exercises.user_id = excluded.user_id`,
		e.ID, userID, e.Name, e.SeedSlug, toMillis(e.CreatedAt), toMillis(e.UpdatedAt), toMillisPtr(e.DeletedAt))
	if err != nil {
		return fmt.Errorf("upsert exercise: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListExercises(ctx context.Context, userID string, since *time.Time) ([]syncapi.Exercise, error) {
	query := `SELECT id, name, seed_slug, created_at, updated_at, deleted_at
		FROM exercises WHERE user_id = $1`
	args := []any{userID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, toMillis(*since))
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	var out []syncapi.Exercise
	for rows.Next() {
		var e syncapi.Exercise
		var created, updated int64
		var deleted sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Name, &e.SeedSlug, &created, &updated, &deleted); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(created)
		e.UpdatedAt = fromMillis(updated)
		e.DeletedAt = fromMillisPtr(deleted)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertTemplate(ctx context.Context, userID string, t syncapi.WorkoutTemplate) error {
	if t.SeedSlug != nil {
		var existingID string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM workout_templates WHERE user_id = $1 AND seed_slug = $2`,
			userID, *t.SeedSlug).Scan(&existingID)
		switch {
		case err == nil:
			_, uerr := r.db.ExecContext(ctx,
				`UPDATE workout_templates SET name = $1, icon = $2, sort_order = $3, updated_at = $4
				 WHERE id = $5 AND user_id = $6`,
				t.Name, t.Icon, t.SortOrder, toMillis(t.UpdatedAt), existingID, userID)
			if uerr != nil {
				return fmt.Errorf("update seeded template: %w", uerr)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find seeded template: %w", err)
		}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_templates (id, user_id, name, seed_slug, icon, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, seed_slug = excluded.seed_slug, icon = excluded.icon,
			sort_order = excluded.sort_order, updated_at = excluded.updated_at
		 WHERE workout_templates.user_id = excluded.user_id`,
		t.ID, userID, t.Name, t.SeedSlug, t.Icon, t.SortOrder, toMillis(t.CreatedAt), toMillis(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListTemplates(ctx context.Context, userID string, since *time.Time) ([]syncapi.WorkoutTemplate, error) {
	query := `SELECT id, name, seed_slug, icon, sort_order, created_at, updated_at
		FROM workout_templates WHERE user_id = $1`
	args := []any{userID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, toMillis(*since))
	}
	query += ` ORDER BY sort_order, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []syncapi.WorkoutTemplate
	for rows.Next() {
		var t syncapi.WorkoutTemplate
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Name, &t.SeedSlug, &t.Icon, &t.SortOrder, &created, &updated); err != nil {
			return nil, err
		}
		t.CreatedAt = fromMillis(created)
		t.UpdatedAt = fromMillis(updated)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertTemplateExercise(ctx context.Context, userID string, te syncapi.TemplateExercise) error {
	if te.SeedSlug != nil {
		var existingID string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM workout_template_exercises WHERE user_id = $1 AND seed_slug = $2`,
			userID, *te.SeedSlug).Scan(&existingID)
		switch {
		case err == nil:
			_, uerr := r.db.ExecContext(ctx,
				`UPDATE workout_template_exercises SET template_id = $1, exercise_id = $2, sort_order = $3
				 WHERE id = $4 AND user_id = $5`,
				te.TemplateID, te.ExerciseID, te.SortOrder, existingID, userID)
			if uerr != nil {
				return fmt.Errorf("update seeded template exercise: %w", uerr)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find seeded template exercise: %w", err)
		}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_template_exercises (id, user_id, template_id, exercise_id, seed_slug, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			template_id = excluded.template_id, exercise_id = excluded.exercise_id,
			seed_slug = excluded.seed_slug, sort_order = excluded.sort_order
		 WHERE workout_template_exercises.user_id = excluded.user_id`,
		te.ID, userID, te.TemplateID, te.ExerciseID, te.SeedSlug, te.SortOrder)
	if err != nil {
		return fmt.Errorf("upsert template exercise: %w", err)
	}
	return checkAffected(res)
}

// ListTemplateExercises always returns the complete set; the junction has no
// timestamp to filter on.
func (r *Repository) ListTemplateExercises(ctx context.Context, userID string) ([]syncapi.TemplateExercise, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, template_id, exercise_id, seed_slug, sort_order
		 FROM workout_template_exercises WHERE user_id = $1 ORDER BY template_id, sort_order`, userID)
	if err != nil {
		return nil, fmt.Errorf("list template exercises: %w", err)
	}
	defer rows.Close()

	var out []syncapi.TemplateExercise
	for rows.Next() {
		var te syncapi.TemplateExercise
		if err := rows.Scan(&te.ID, &te.TemplateID, &te.ExerciseID, &te.SeedSlug, &te.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, te)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertSession(ctx context.Context, userID string, ws syncapi.WorkoutSession, plannedJSON string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_sessions (id, user_id, template_id, started_at, updated_at, ended_at, notes, planned_exercises)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			template_id = excluded.template_id, started_at = excluded.started_at,
			updated_at = excluded.updated_at, ended_at = excluded.ended_at,
			notes = excluded.notes, planned_exercises = excluded.planned_exercises
		 WHERE workout_sessions.user_id = excluded.user_id`,
		ws.ID, userID, ws.TemplateID, toMillis(ws.StartedAt), toMillis(ws.UpdatedAt),
		toMillisPtr(ws.EndedAt), ws.Notes, plannedJSON)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListSessions(ctx context.Context, userID string, since *time.Time) ([]syncapi.WorkoutSession, []string, error) {
	query := `SELECT id, template_id, started_at, updated_at, ended_at, notes, planned_exercises
		FROM workout_sessions WHERE user_id = $1`
	args := []any{userID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, toMillis(*since))
	}
	query += ` ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []syncapi.WorkoutSession
	var planned []string
	for rows.Next() {
		var ws syncapi.WorkoutSession
		var started, updated int64
		var ended sql.NullInt64
		var plannedJSON string
		if err := rows.Scan(&ws.ID, &ws.TemplateID, &started, &updated, &ended, &ws.Notes, &plannedJSON); err != nil {
			return nil, nil, err
		}
		ws.StartedAt = fromMillis(started)
		ws.UpdatedAt = fromMillis(updated)
		ws.EndedAt = fromMillisPtr(ended)
		out = append(out, ws)
		planned = append(planned, plannedJSON)
	}
	return out, planned, rows.Err()
}

func (r *Repository) UpsertLoggedExercise(ctx context.Context, userID string, le syncapi.LoggedExercise) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO logged_exercises (id, user_id, session_id, exercise_id, full_reps, partial_reps, notes, logged_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			session_id = excluded.session_id, exercise_id = excluded.exercise_id,
			full_reps = excluded.full_reps, partial_reps = excluded.partial_reps,
			notes = excluded.notes, logged_at = excluded.logged_at
		 WHERE logged_exercises.user_id = excluded.user_id`,
		le.ID, userID, le.SessionID, le.ExerciseID, le.FullReps, le.PartialReps, le.Notes, toMillis(le.LoggedAt))
	if err != nil {
		return fmt.Errorf("upsert logged exercise: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListLoggedExercises(ctx context.Context, userID string) ([]syncapi.LoggedExercise, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, exercise_id, full_reps, partial_reps, notes, logged_at
		 FROM logged_exercises WHERE user_id = $1 ORDER BY logged_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list logged exercises: %w", err)
	}
	defer rows.Close()

	var out []syncapi.LoggedExercise
	for rows.Next() {
		var le syncapi.LoggedExercise
		var logged int64
		if err := rows.Scan(&le.ID, &le.SessionID, &le.ExerciseID, &le.FullReps, &le.PartialReps, &le.Notes, &logged); err != nil {
			return nil, err
		}
		le.LoggedAt = fromMillis(logged)
		out = append(out, le)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertLoggedExerciseBand(ctx context.Context, userID string, leb syncapi.LoggedExerciseBand) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO logged_exercise_bands (id, user_id, logged_exercise_id, band_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			logged_exercise_id = excluded.logged_exercise_id, band_id = excluded.band_id
		 WHERE logged_exercise_bands.user_id = excluded.user_id`,
		leb.ID, userID, leb.LoggedExerciseID, leb.BandID)
	if err != nil {
		return fmt.Errorf("upsert logged exercise band: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListLoggedExerciseBands(ctx context.Context, userID string) ([]syncapi.LoggedExerciseBand, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, logged_exercise_id, band_id
		 FROM logged_exercise_bands WHERE user_id = $1 ORDER BY logged_exercise_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list logged exercise bands: %w", err)
	}
	defer rows.Close()

	var out []syncapi.LoggedExerciseBand
	for rows.Next() {
		var leb syncapi.LoggedExerciseBand
		if err := rows.Scan(&leb.ID, &leb.LoggedExerciseID, &leb.BandID); err != nil {
			return nil, err
		}
		out = append(out, leb)
	}
	return out, rows.Err()
}
