// Package workout is the domain layer over the local store: all user-facing
// mutations go through here so every write stamps updatedAt and schedules a
// sync.
package workout

import (
	"context"
	"errors"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

// SettingsID is the fixed id of the singleton settings row.
const SettingsID = "global"

// SyncTrigger schedules a debounced sync round after a local write.
type SyncTrigger interface {
	TriggerSync()
}

type Service struct {
	store *store.Store
	sync  SyncTrigger
	log   logging.Logger
	now   func() time.Time
}

func NewService(st *store.Store, sync SyncTrigger, log logging.Logger) *Service {
	return &Service{store: st, sync: sync, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// bands

// AddBand creates the band and its doubled variant: looping a band doubles
// its resistance, and users log both forms.
func (s *Service) AddBand(ctx context.Context, name string, resistance float64, color *string) error {
	now := s.now()

	doubled := &models.Band{}
	doubled.ID = models.NewID()
	doubled.Name = name + " doubled"
	doubled.Resistance = resistance * 2
	doubled.Color = color
	doubled.CreatedAt, doubled.UpdatedAt = now, now
	if err := s.store.UpsertBand(ctx, doubled); err != nil {
		return err
	}

	b := &models.Band{}
	b.ID = models.NewID()
	b.Name = name
	b.Resistance = resistance
	b.Color = color
	b.CreatedAt, b.UpdatedAt = now, now
	if err := s.store.UpsertBand(ctx, b); err != nil {
		return err
	}

	s.sync.TriggerSync()
	return nil
}

func (s *Service) UpdateBand(ctx context.Context, id, name string, resistance float64, color *string) error {
	b, err := s.store.GetBand(ctx, id)
	if err != nil {
		return err
	}
	b.Name = name
	b.Resistance = resistance
	if color != nil {
		b.Color = color
	}
	b.UpdatedAt = s.now()
	if err := s.store.UpsertBand(ctx, b); err != nil {
		return err
	}
	s.sync.TriggerSync()
	return nil
}

// DeleteBand hides seeded rows behind a soft delete so catalog references
// stay valid; user rows are removed outright, degrading to soft delete when
// a log row still points at them.
func (s *Service) DeleteBand(ctx context.Context, id string) error {
	b, err := s.store.GetBand(ctx, id)
	if err != nil {
		return err
	}
	if b.SeedSlug != nil {
		if err := s.store.SoftDeleteBand(ctx, id, s.now()); err != nil {
			return err
		}
		s.sync.TriggerSync()
		return nil
	}
	if err := s.store.DeleteBand(ctx, id); err != nil {
		if !errors.Is(err, common.ErrForeignKeyViolation) {
			return err
		}
		if err := s.store.SoftDeleteBand(ctx, id, s.now()); err != nil {
			return err
		}
	}
	s.sync.TriggerSync()
	return nil
}

func (s *Service) Bands(ctx context.Context) ([]models.Band, error) {
	return s.store.ActiveBands(ctx)
}

// exercises

func (s *Service) AddExercise(ctx context.Context, name string) (*models.Exercise, error) {
	now := s.now()
	e := &models.Exercise{}
	e.ID = models.NewID()
	e.Name = name
	e.CreatedAt, e.UpdatedAt = now, now
	if err := s.store.UpsertExercise(ctx, e); err != nil {
		return nil, err
	}
	s.sync.TriggerSync()
	return e, nil
}

func (s *Service) DeleteExercise(ctx context.Context, id string) error {
	e, err := s.store.GetExercise(ctx, id)
	if err != nil {
		return err
	}
	if e.SeedSlug != nil {
		if err := s.store.SoftDeleteExercise(ctx, id, s.now()); err != nil {
			return err
		}
		s.sync.TriggerSync()
		return nil
	}
	if err := s.store.DeleteExercise(ctx, id); err != nil {
		if !errors.Is(err, common.ErrForeignKeyViolation) {
			return err
		}
		if err := s.store.SoftDeleteExercise(ctx, id, s.now()); err != nil {
			return err
		}
	}
	s.sync.TriggerSync()
	return nil
}

func (s *Service) Exercises(ctx context.Context) ([]models.Exercise, error) {
	return s.store.ActiveExercises(ctx)
}

// templates

// Template is a workout template with its exercises in sort order.
type Template struct {
	models.WorkoutTemplate
	Exercises []models.Exercise
}

func (s *Service) AddTemplate(ctx context.Context, name string) (*models.WorkoutTemplate, error) {
	now := s.now()
	t := &models.WorkoutTemplate{}
	t.ID = models.NewID()
	t.Name = name
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.store.UpsertTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.sync.TriggerSync()
	return t, nil
}

// UpdateTemplate renames the template and replaces its exercise list; link
// order follows the given slice.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, exerciseIDs []string) error {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	t.Name = name
	t.UpdatedAt = s.now()
	if err := s.store.UpsertTemplate(ctx, t); err != nil {
		return err
	}
	if err := s.store.DeleteTemplateExercisesByTemplate(ctx, id); err != nil {
		return err
	}
	for i, exerciseID := range exerciseIDs {
		te := &models.TemplateExercise{}
		te.ID = models.NewID()
		te.TemplateID = id
		te.ExerciseID = exerciseID
		te.SortOrder = i
		if err := s.store.UpsertTemplateExercise(ctx, te); err != nil {
			return err
		}
	}
	s.sync.TriggerSync()
	return nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.sync.TriggerSync()
	return nil
}

// Templates returns every template with its exercises resolved and ordered.
func (s *Service) Templates(ctx context.Context) ([]Template, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Template, 0, len(templates))
	for _, t := range templates {
		links, err := s.store.TemplateExercisesByTemplate(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		tpl := Template{WorkoutTemplate: t}
		for _, link := range links {
			e, err := s.store.GetExercise(ctx, link.ExerciseID)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			tpl.Exercises = append(tpl.Exercises, *e)
		}
		result = append(result, tpl)
	}
	return result, nil
}

// sessions

// StartSession opens a session, planning the template's exercises if one was
// chosen.
func (s *Service) StartSession(ctx context.Context, templateID *string) (*models.WorkoutSession, error) {
	now := s.now()
	ws := &models.WorkoutSession{}
	ws.ID = models.NewID()
	ws.TemplateID = templateID
	ws.StartedAt, ws.UpdatedAt = now, now

	if templateID != nil {
		links, err := s.store.TemplateExercisesByTemplate(ctx, *templateID)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			ws.PlannedExercises = append(ws.PlannedExercises, link.ExerciseID)
		}
	}

	if err := s.store.UpsertSession(ctx, ws); err != nil {
		return nil, err
	}
	s.sync.TriggerSync()
	return ws, nil
}

func (s *Service) EndSession(ctx context.Context, sessionID string, notes *string) error {
	ws, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	now := s.now()
	ws.EndedAt = &now
	ws.Notes = notes
	ws.UpdatedAt = now
	if err := s.store.UpsertSession(ctx, ws); err != nil {
		return err
	}
	s.sync.TriggerSync()
	return nil
}

// LogExercise records one set with the bands it used.
func (s *Service) LogExercise(ctx context.Context, sessionID, exerciseID string, bandIDs []string, fullReps, partialReps int, notes *string) (*models.LoggedExercise, error) {
	now := s.now()
	le := &models.LoggedExercise{}
	le.ID = models.NewID()
	le.SessionID = sessionID
	le.ExerciseID = exerciseID
	le.FullReps = fullReps
	le.PartialReps = partialReps
	le.Notes = notes
	le.LoggedAt = now
	if err := s.store.UpsertLoggedExercise(ctx, le); err != nil {
		return nil, err
	}

	for _, bandID := range bandIDs {
		leb := &models.LoggedExerciseBand{}
		leb.ID = models.NewID()
		leb.LoggedExerciseID = le.ID
		leb.BandID = bandID
		if err := s.store.UpsertLoggedExerciseBand(ctx, leb); err != nil {
			return nil, err
		}
	}

	// Logging touches the session so other devices pull it incrementally.
	ws, err := s.store.GetSession(ctx, sessionID)
	if err == nil {
		ws.UpdatedAt = now
		if err := s.store.UpsertSession(ctx, ws); err != nil {
			return nil, err
		}
	}

	s.sync.TriggerSync()
	return le, nil
}

func (s *Service) RemoveLoggedExercise(ctx context.Context, logID string) error {
	if err := s.store.DeleteLoggedExercise(ctx, logID); err != nil {
		return err
	}
	s.sync.TriggerSync()
	return nil
}

func (s *Service) Sessions(ctx context.Context) ([]models.WorkoutSession, error) {
	return s.store.ListSessions(ctx)
}

func (s *Service) SessionLogs(ctx context.Context, sessionID string) ([]models.LoggedExercise, error) {
	return s.store.LoggedExercisesBySession(ctx, sessionID)
}

// settings

// Settings returns the singleton row, creating the default on first use.
func (s *Service) Settings(ctx context.Context) (*models.Settings, error) {
	st, err := s.store.GetSettings(ctx, SettingsID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	st = &models.Settings{}
	st.ID = SettingsID
	st.WeightUnit = "lbs"
	st.KeepScreenAwake = true
	st.UpdatedAt = s.now()
	if err := s.store.UpsertSettings(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) UpdateSettings(ctx context.Context, weightUnit string, keepScreenAwake bool) error {
	st, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	st.WeightUnit = weightUnit
	st.KeepScreenAwake = keepScreenAwake
	st.UpdatedAt = s.now()
	if err := s.store.UpsertSettings(ctx, st); err != nil {
		return err
	}
	s.sync.TriggerSync()
	return nil
}
