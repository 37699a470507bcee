package syncdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mzhdanov/bandtrack/internal/dbx"
	"github.com/mzhdanov/bandtrack/internal/logging"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// Service applies pushes and serves pulls, each inside one transaction so a
// client never observes a half-applied batch.
type Service struct {
	db  *sql.DB
	log logging.Logger
}

func NewService(db *sql.DB, log logging.Logger) *Service {
	return &Service{db: db, log: log.With("component", "syncdata")}
}

// Push upserts every row of the request under the caller's tenant, parents
// before children so foreign keys hold. Returns the server-side sync moment
// the client stores as its cursor.
func (s *Service) Push(ctx context.Context, userID string, req *syncapi.PushRequest) (time.Time, error) {
	syncedAt := time.Now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewRepository(tx)

		for _, b := range req.Bands {
			if err := r.UpsertBand(ctx, userID, b); err != nil {
				return fmt.Errorf("band %s: %w", b.ID, err)
			}
		}
		for _, st := range req.Settings {
			if err := r.UpsertSettings(ctx, userID, st); err != nil {
				return fmt.Errorf("settings %s: %w", st.ID, err)
			}
		}
		for _, e := range req.Exercises {
			if err := r.UpsertExercise(ctx, userID, e); err != nil {
				return fmt.Errorf("exercise %s: %w", e.ID, err)
			}
		}
		for _, t := range req.WorkoutTemplates {
			if err := r.UpsertTemplate(ctx, userID, t); err != nil {
				return fmt.Errorf("template %s: %w", t.ID, err)
			}
		}
		for _, te := range req.TemplateExercises {
			if err := r.UpsertTemplateExercise(ctx, userID, te); err != nil {
				return fmt.Errorf("template exercise %s: %w", te.ID, err)
			}
		}
		for _, ws := range req.WorkoutSessions {
			planned, err := plannedToJSON(ws.PlannedExercises)
			if err != nil {
				return fmt.Errorf("session %s: %w", ws.ID, err)
			}
			if err := r.UpsertSession(ctx, userID, ws, planned); err != nil {
				return fmt.Errorf("session %s: %w", ws.ID, err)
			}
		}
		for _, le := range req.LoggedExercises {
			if err := r.UpsertLoggedExercise(ctx, userID, le); err != nil {
				return fmt.Errorf("logged exercise %s: %w", le.ID, err)
			}
		}
		for _, leb := range req.LoggedExerciseBands {
			if err := r.UpsertLoggedExerciseBand(ctx, userID, leb); err != nil {
				return fmt.Errorf("logged exercise band %s: %w", leb.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	s.log.Info(ctx, "push applied", "user", userID, "rows", countPushRows(req))
	return syncedAt, nil
}

// Pull assembles the caller's server-side state. Tables edited independently
// come back incremental against lastSyncAt; junctions, logs and settings are
// always complete because the client upserts them unconditionally.
func (s *Service) Pull(ctx context.Context, userID string, lastSyncAt *time.Time) (*syncapi.PullResponse, error) {
	resp := &syncapi.PullResponse{SyncedAt: time.Now().UTC()}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewRepository(tx)

		var err error
		if resp.Bands, err = r.ListBands(ctx, userID, lastSyncAt); err != nil {
			return err
		}
		if resp.Settings, err = r.ListSettings(ctx, userID); err != nil {
			return err
		}
		if resp.Exercises, err = r.ListExercises(ctx, userID, lastSyncAt); err != nil {
			return err
		}
		if resp.WorkoutTemplates, err = r.ListTemplates(ctx, userID, lastSyncAt); err != nil {
			return err
		}
		if resp.TemplateExercises, err = r.ListTemplateExercises(ctx, userID); err != nil {
			return err
		}
		sessions, planned, err := r.ListSessions(ctx, userID, lastSyncAt)
		if err != nil {
			return err
		}
		for i := range sessions {
			if err := json.Unmarshal([]byte(planned[i]), &sessions[i].PlannedExercises); err != nil {
				return fmt.Errorf("session %s planned list: %w", sessions[i].ID, err)
			}
		}
		resp.WorkoutSessions = sessions
		if resp.LoggedExercises, err = r.ListLoggedExercises(ctx, userID); err != nil {
			return err
		}
		if resp.LoggedExerciseBands, err = r.ListLoggedExerciseBands(ctx, userID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func plannedToJSON(planned []string) (string, error) {
	if planned == nil {
		planned = []string{}
	}
	b, err := json.Marshal(planned)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func countPushRows(req *syncapi.PushRequest) int {
	return len(req.Bands) + len(req.Settings) + len(req.Exercises) +
		len(req.WorkoutTemplates) + len(req.TemplateExercises) +
		len(req.WorkoutSessions) + len(req.LoggedExercises) + len(req.LoggedExerciseBands)
}
