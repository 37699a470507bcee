package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// applyPull merges the server snapshot into the local store, last-write-wins
// by updatedAt. Parents go first so child rows never reference a missing id.
func (s *Syncer) applyPull(ctx context.Context, pull *syncapi.PullResponse) error {
	appliedAt := time.Now().UTC()

	for _, b := range pull.Bands {
		if err := s.applyBand(ctx, b, appliedAt); err != nil {
			return err
		}
	}
	for _, st := range pull.Settings {
		if err := s.applySettings(ctx, st, appliedAt); err != nil {
			return err
		}
	}
	for _, e := range pull.Exercises {
		if err := s.applyExercise(ctx, e, appliedAt); err != nil {
			return err
		}
	}
	for _, t := range pull.WorkoutTemplates {
		if err := s.applyTemplate(ctx, t, appliedAt); err != nil {
			return err
		}
	}
	for _, te := range pull.TemplateExercises {
		if err := s.applyTemplateExercise(ctx, te, appliedAt); err != nil {
			return err
		}
	}
	for _, ws := range pull.WorkoutSessions {
		if err := s.applySession(ctx, ws, appliedAt); err != nil {
			return err
		}
	}
	for _, le := range pull.LoggedExercises {
		if err := s.applyLoggedExercise(ctx, le, appliedAt); err != nil {
			return err
		}
	}
	for _, leb := range pull.LoggedExerciseBands {
		if err := s.applyLoggedExerciseBand(ctx, leb, appliedAt); err != nil {
			return err
		}
	}

	pulledRows.Add(float64(len(pull.Bands) + len(pull.Settings) + len(pull.Exercises) +
		len(pull.WorkoutTemplates) + len(pull.TemplateExercises) +
		len(pull.WorkoutSessions) + len(pull.LoggedExercises) + len(pull.LoggedExerciseBands)))
	return nil
}

func (s *Syncer) applyBand(ctx context.Context, b syncapi.Band, appliedAt time.Time) error {
	if b.SeedSlug != nil {
		local, err := s.store.FindBandBySeedSlug(ctx, *b.SeedSlug)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err == nil && local.ID != b.ID {
			// Two devices seeded this catalog entry independently. The pulled
			// row becomes canonical; remap references before deleting the old
			// row so no foreign key dangles.
			if err := s.store.ClearBandSeedSlug(ctx, local.ID); err != nil {
				return err
			}
			if err := s.upsertBand(ctx, b, appliedAt); err != nil {
				return err
			}
			if err := s.store.RemapBandRefs(ctx, local.ID, b.ID); err != nil {
				return err
			}
			return s.store.DeleteBand(ctx, local.ID)
		}
	}

	local, err := s.store.GetBand(ctx, b.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return s.upsertBand(ctx, b, appliedAt)
	}
	if err != nil {
		return err
	}
	if local.UpdatedAt.Before(b.UpdatedAt) {
		return s.upsertBand(ctx, b, appliedAt)
	}
	return nil
}

func (s *Syncer) upsertBand(ctx context.Context, b syncapi.Band, appliedAt time.Time) error {
	m := &models.Band{Band: b, SyncedAt: &appliedAt}
	return s.store.UpsertBand(ctx, m)
}

func (s *Syncer) applySettings(ctx context.Context, in syncapi.Settings, appliedAt time.Time) error {
	local, err := s.store.GetSettings(ctx, in.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if err == nil && !local.UpdatedAt.Before(in.UpdatedAt) {
		return nil
	}
	m := &models.Settings{Settings: in, SyncedAt: &appliedAt}
	return s.store.UpsertSettings(ctx, m)
}

func (s *Syncer) applyExercise(ctx context.Context, e syncapi.Exercise, appliedAt time.Time) error {
	if e.SeedSlug != nil {
		local, err := s.store.FindExerciseBySeedSlug(ctx, *e.SeedSlug)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err == nil && local.ID != e.ID {
			if err := s.store.ClearExerciseSeedSlug(ctx, local.ID); err != nil {
				return err
			}
			if err := s.upsertExercise(ctx, e, appliedAt); err != nil {
				return err
			}
			if err := s.store.RemapExerciseRefs(ctx, local.ID, e.ID); err != nil {
				return err
			}
			return s.store.DeleteExercise(ctx, local.ID)
		}
	}

	local, err := s.store.GetExercise(ctx, e.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return s.upsertExercise(ctx, e, appliedAt)
	}
	if err != nil {
		return err
	}
	if local.UpdatedAt.Before(e.UpdatedAt) {
		return s.upsertExercise(ctx, e, appliedAt)
	}
	return nil
}

func (s *Syncer) upsertExercise(ctx context.Context, e syncapi.Exercise, appliedAt time.Time) error {
	m := &models.Exercise{Exercise: e, SyncedAt: &appliedAt}
	return s.store.UpsertExercise(ctx, m)
}

func (s *Syncer) applyTemplate(ctx context.Context, t syncapi.WorkoutTemplate, appliedAt time.Time) error {
	if t.SeedSlug != nil {
		local, err := s.store.FindTemplateBySeedSlug(ctx, *t.SeedSlug)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err == nil && local.ID != t.ID {
			if err := s.store.ClearTemplateSeedSlug(ctx, local.ID); err != nil {
				return err
			}
			if err := s.upsertTemplate(ctx, t, appliedAt); err != nil {
				return err
			}
			if err := s.store.RemapTemplateRefs(ctx, local.ID, t.ID); err != nil {
				return err
			}
			return s.store.DeleteTemplate(ctx, local.ID)
		}
	}

	local, err := s.store.GetTemplate(ctx, t.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return s.upsertTemplate(ctx, t, appliedAt)
	}
	if err != nil {
		return err
	}
	if local.UpdatedAt.Before(t.UpdatedAt) {
		return s.upsertTemplate(ctx, t, appliedAt)
	}
	return nil
}

func (s *Syncer) upsertTemplate(ctx context.Context, t syncapi.WorkoutTemplate, appliedAt time.Time) error {
	m := &models.WorkoutTemplate{WorkoutTemplate: t, SyncedAt: &appliedAt}
	return s.store.UpsertTemplate(ctx, m)
}

// applyTemplateExercise always upserts (append-only), but still honors the
// seed slug uniqueness invariant: a local link with the same slug under a
// different id gives way to the pulled one.
func (s *Syncer) applyTemplateExercise(ctx context.Context, te syncapi.TemplateExercise, appliedAt time.Time) error {
	if te.SeedSlug != nil {
		local, err := s.store.FindTemplateExerciseBySeedSlug(ctx, *te.SeedSlug)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err == nil && local.ID != te.ID {
			if err := s.store.DeleteTemplateExercise(ctx, local.ID); err != nil {
				return err
			}
		}
	}
	m := &models.TemplateExercise{TemplateExercise: te, SyncedAt: &appliedAt}
	if err := s.store.UpsertTemplateExercise(ctx, m); err != nil {
		if errors.Is(err, common.ErrForeignKeyViolation) {
			s.log.Warn(ctx, "skipping pulled template link with missing parent", "id", te.ID)
			return nil
		}
		return err
	}
	return nil
}

func (s *Syncer) applySession(ctx context.Context, ws syncapi.WorkoutSession, appliedAt time.Time) error {
	local, err := s.store.GetSession(ctx, ws.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if err == nil && !local.UpdatedAt.Before(ws.UpdatedAt) {
		return nil
	}
	m := &models.WorkoutSession{WorkoutSession: ws, SyncedAt: &appliedAt}
	return s.store.UpsertSession(ctx, m)
}

func (s *Syncer) applyLoggedExercise(ctx context.Context, le syncapi.LoggedExercise, appliedAt time.Time) error {
	m := &models.LoggedExercise{LoggedExercise: le, SyncedAt: &appliedAt}
	if err := s.store.UpsertLoggedExercise(ctx, m); err != nil {
		if errors.Is(err, common.ErrForeignKeyViolation) {
			s.log.Warn(ctx, "skipping pulled log row with missing parent", "id", le.ID)
			return nil
		}
		return err
	}
	return nil
}

func (s *Syncer) applyLoggedExerciseBand(ctx context.Context, leb syncapi.LoggedExerciseBand, appliedAt time.Time) error {
	m := &models.LoggedExerciseBand{LoggedExerciseBand: leb, SyncedAt: &appliedAt}
	if err := s.store.UpsertLoggedExerciseBand(ctx, m); err != nil {
		if errors.Is(err, common.ErrForeignKeyViolation) {
			s.log.Warn(ctx, "skipping pulled band link with missing parent", "id", leb.ID)
			return nil
		}
		return err
	}
	return nil
}
