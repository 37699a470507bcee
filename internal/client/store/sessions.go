package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/common"
)

const sessionColumns = `id, template_id, started_at, updated_at, ended_at, notes, planned_exercises, synced_at`
const loggedExerciseColumns = `id, session_id, exercise_id, full_reps, partial_reps, notes, logged_at, synced_at`
const loggedExerciseBandColumns = `id, logged_exercise_id, band_id, synced_at`

func plannedToJSON(planned []string) (any, error) {
	if planned == nil {
		return nil, nil
	}
	b, err := json.Marshal(planned)
	if err != nil {
		return nil, fmt.Errorf("encode planned exercises: %w", err)
	}
	return string(b), nil
}

func scanSession(r rowScanner) (*models.WorkoutSession, error) {
	var ws models.WorkoutSession
	var started, updated int64
	var ended, synced sql.NullInt64
	var planned sql.NullString
	err := r.Scan(&ws.ID, &ws.TemplateID, &started, &updated, &ended, &ws.Notes, &planned, &synced)
	if err != nil {
		return nil, err
	}
	ws.StartedAt = fromMillis(started)
	ws.UpdatedAt = fromMillis(updated)
	ws.EndedAt = fromMillisPtr(ended)
	ws.SyncedAt = fromMillisPtr(synced)
	if planned.Valid {
		if err := json.Unmarshal([]byte(planned.String), &ws.PlannedExercises); err != nil {
			return nil, fmt.Errorf("decode planned exercises: %w", err)
		}
	}
	return &ws, nil
}

func (s *Store) UpsertSession(ctx context.Context, ws *models.WorkoutSession) error {
	planned, err := plannedToJSON(ws.PlannedExercises)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workout_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			template_id = excluded.template_id,
			updated_at = excluded.updated_at,
			ended_at = excluded.ended_at,
			notes = excluded.notes,
			planned_exercises = excluded.planned_exercises,
			synced_at = excluded.synced_at`,
		ws.ID, ws.TemplateID, toMillis(ws.StartedAt), toMillis(ws.UpdatedAt),
		toMillisPtr(ws.EndedAt), ws.Notes, planned, toMillisPtr(ws.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	s.notify("workout_sessions")
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.WorkoutSession, error) {
	ws, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return ws, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]models.WorkoutSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSession
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ws)
	}
	return result, rows.Err()
}

func (s *Store) ListSessions(ctx context.Context) ([]models.WorkoutSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM workout_sessions ORDER BY started_at DESC`)
}

func (s *Store) DirtySessions(ctx context.Context) ([]models.WorkoutSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE synced_at IS NULL OR synced_at < updated_at`)
}

func (s *Store) MarkSessionsSynced(ctx context.Context, pushed []models.WorkoutSession, syncedAt time.Time) error {
	for _, ws := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE workout_sessions SET synced_at = ? WHERE id = ? AND updated_at <= ?`,
			toMillis(syncedAt), ws.ID, toMillis(ws.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark session synced: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workout_sessions WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("workout_sessions")
	return nil
}

// DeleteLoggedExercise removes a log row; its band links cascade.
func (s *Store) DeleteLoggedExercise(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM logged_exercises WHERE id = ?`, id); err != nil {
		return mapConstraintErr(err)
	}
	s.notify("logged_exercises")
	return nil
}

// Logged exercises. Append-only.

func scanLoggedExercise(r rowScanner) (*models.LoggedExercise, error) {
	var le models.LoggedExercise
	var logged int64
	var synced sql.NullInt64
	err := r.Scan(&le.ID, &le.SessionID, &le.ExerciseID, &le.FullReps, &le.PartialReps, &le.Notes, &logged, &synced)
	if err != nil {
		return nil, err
	}
	le.LoggedAt = fromMillis(logged)
	le.SyncedAt = fromMillisPtr(synced)
	return &le, nil
}

func (s *Store) UpsertLoggedExercise(ctx context.Context, le *models.LoggedExercise) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logged_exercises (`+loggedExerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			exercise_id = excluded.exercise_id,
			full_reps = excluded.full_reps,
			partial_reps = excluded.partial_reps,
			notes = excluded.notes,
			logged_at = excluded.logged_at,
			synced_at = excluded.synced_at`,
		le.ID, le.SessionID, le.ExerciseID, le.FullReps, le.PartialReps, le.Notes,
		toMillis(le.LoggedAt), toMillisPtr(le.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert logged exercise: %w", mapConstraintErr(err))
	}
	s.notify("logged_exercises")
	return nil
}

func (s *Store) queryLoggedExercises(ctx context.Context, query string, args ...any) ([]models.LoggedExercise, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select logged exercises: %w", err)
	}
	defer rows.Close()

	var result []models.LoggedExercise
	for rows.Next() {
		le, err := scanLoggedExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *le)
	}
	return result, rows.Err()
}

func (s *Store) LoggedExercisesBySession(ctx context.Context, sessionID string) ([]models.LoggedExercise, error) {
	return s.queryLoggedExercises(ctx,
		`SELECT `+loggedExerciseColumns+` FROM logged_exercises WHERE session_id = ? ORDER BY logged_at`, sessionID)
}

func (s *Store) DirtyLoggedExercises(ctx context.Context) ([]models.LoggedExercise, error) {
	return s.queryLoggedExercises(ctx, `SELECT `+loggedExerciseColumns+` FROM logged_exercises WHERE synced_at IS NULL`)
}

func (s *Store) MarkLoggedExercisesSynced(ctx context.Context, pushed []models.LoggedExercise, syncedAt time.Time) error {
	for _, le := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE logged_exercises SET synced_at = ? WHERE id = ? AND synced_at IS NULL`,
			toMillis(syncedAt), le.ID)
		if err != nil {
			return fmt.Errorf("mark logged exercise synced: %w", err)
		}
	}
	return nil
}

// Logged exercise bands. Append-only.

func scanLoggedExerciseBand(r rowScanner) (*models.LoggedExerciseBand, error) {
	var leb models.LoggedExerciseBand
	var synced sql.NullInt64
	err := r.Scan(&leb.ID, &leb.LoggedExerciseID, &leb.BandID, &synced)
	if err != nil {
		return nil, err
	}
	leb.SyncedAt = fromMillisPtr(synced)
	return &leb, nil
}

func (s *Store) UpsertLoggedExerciseBand(ctx context.Context, leb *models.LoggedExerciseBand) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logged_exercise_bands (`+loggedExerciseBandColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			logged_exercise_id = excluded.logged_exercise_id,
			band_id = excluded.band_id,
			synced_at = excluded.synced_at`,
		leb.ID, leb.LoggedExerciseID, leb.BandID, toMillisPtr(leb.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert logged exercise band: %w", mapConstraintErr(err))
	}
	s.notify("logged_exercise_bands")
	return nil
}

func (s *Store) queryLoggedExerciseBands(ctx context.Context, query string, args ...any) ([]models.LoggedExerciseBand, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select logged exercise bands: %w", err)
	}
	defer rows.Close()

	var result []models.LoggedExerciseBand
	for rows.Next() {
		leb, err := scanLoggedExerciseBand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *leb)
	}
	return result, rows.Err()
}

func (s *Store) LoggedExerciseBandsByLog(ctx context.Context, loggedExerciseID string) ([]models.LoggedExerciseBand, error) {
	return s.queryLoggedExerciseBands(ctx,
		`SELECT `+loggedExerciseBandColumns+` FROM logged_exercise_bands WHERE logged_exercise_id = ?`, loggedExerciseID)
}

func (s *Store) DirtyLoggedExerciseBands(ctx context.Context) ([]models.LoggedExerciseBand, error) {
	return s.queryLoggedExerciseBands(ctx, `SELECT `+loggedExerciseBandColumns+` FROM logged_exercise_bands WHERE synced_at IS NULL`)
}

func (s *Store) MarkLoggedExerciseBandsSynced(ctx context.Context, pushed []models.LoggedExerciseBand, syncedAt time.Time) error {
	for _, leb := range pushed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE logged_exercise_bands SET synced_at = ? WHERE id = ? AND synced_at IS NULL`,
			toMillis(syncedAt), leb.ID)
		if err != nil {
			return fmt.Errorf("mark logged exercise band synced: %w", err)
		}
	}
	return nil
}
