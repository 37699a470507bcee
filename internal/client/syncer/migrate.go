package syncer

import (
	"context"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
)

// migrateLegacySeeds collapses duplicate catalog rows created by installs
// that predate stable seed slugs. Runs at most once per user per device
// profile and always before the push phase, so duplicates never reach the
// server.
func (s *Syncer) migrateLegacySeeds(ctx context.Context) error {
	key := seedDedupKey + s.userID
	done, err := s.store.GetMetadata(ctx, key)
	if err != nil {
		return err
	}
	if done != "" {
		return nil
	}

	if err := s.dedupBands(ctx); err != nil {
		return err
	}
	if err := s.dedupExercises(ctx); err != nil {
		return err
	}
	if err := s.dedupTemplates(ctx); err != nil {
		return err
	}
	if err := s.dedupTemplateLinks(ctx); err != nil {
		return err
	}

	return s.store.SetMetadata(ctx, key, time.Now().UTC().Format(cursorTimeLayout))
}

// beats reports whether row a should be canonical over row b: a live row
// beats a soft-deleted one, then the most recently updated wins.
func beats(aDeleted *time.Time, aUpdated time.Time, bDeleted *time.Time, bUpdated time.Time) bool {
	if (aDeleted == nil) != (bDeleted == nil) {
		return aDeleted == nil
	}
	return aUpdated.After(bUpdated)
}

func (s *Syncer) dedupBands(ctx context.Context) error {
	all, err := s.store.ListBands(ctx)
	if err != nil {
		return err
	}
	groups := map[string][]models.Band{}
	for _, b := range all {
		if b.SeedSlug == nil {
			continue
		}
		groups[*b.SeedSlug] = append(groups[*b.SeedSlug], b)
	}
	for slug, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		canonical := rows[0]
		for _, r := range rows[1:] {
			if beats(r.DeletedAt, r.UpdatedAt, canonical.DeletedAt, canonical.UpdatedAt) {
				canonical = r
			}
		}
		s.log.Info(ctx, "deduplicating legacy seed rows", "table", "bands", "seedSlug", slug, "count", len(rows))
		for _, r := range rows {
			if r.ID == canonical.ID {
				continue
			}
			if err := s.store.RemapBandRefs(ctx, r.ID, canonical.ID); err != nil {
				return err
			}
			if err := s.store.DeleteBand(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Syncer) dedupExercises(ctx context.Context) error {
	all, err := s.store.ListExercises(ctx)
	if err != nil {
		return err
	}
	groups := map[string][]models.Exercise{}
	for _, e := range all {
		if e.SeedSlug == nil {
			continue
		}
		groups[*e.SeedSlug] = append(groups[*e.SeedSlug], e)
	}
	for slug, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		canonical := rows[0]
		for _, r := range rows[1:] {
			if beats(r.DeletedAt, r.UpdatedAt, canonical.DeletedAt, canonical.UpdatedAt) {
				canonical = r
			}
		}
		s.log.Info(ctx, "deduplicating legacy seed rows", "table", "exercises", "seedSlug", slug, "count", len(rows))
		for _, r := range rows {
			if r.ID == canonical.ID {
				continue
			}
			if err := s.store.RemapExerciseRefs(ctx, r.ID, canonical.ID); err != nil {
				return err
			}
			if err := s.store.DeleteExercise(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Syncer) dedupTemplates(ctx context.Context) error {
	all, err := s.store.ListTemplates(ctx)
	if err != nil {
		return err
	}
	groups := map[string][]models.WorkoutTemplate{}
	for _, t := range all {
		if t.SeedSlug == nil {
			continue
		}
		groups[*t.SeedSlug] = append(groups[*t.SeedSlug], t)
	}
	for slug, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		// Templates carry no soft-delete marker, so recency alone decides.
		canonical := rows[0]
		for _, r := range rows[1:] {
			if r.UpdatedAt.After(canonical.UpdatedAt) {
				canonical = r
			}
		}
		s.log.Info(ctx, "deduplicating legacy seed rows", "table", "workout_templates", "seedSlug", slug, "count", len(rows))
		for _, r := range rows {
			if r.ID == canonical.ID {
				continue
			}
			if err := s.store.RemapTemplateRefs(ctx, r.ID, canonical.ID); err != nil {
				return err
			}
			if err := s.store.DeleteTemplate(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// dedupTemplateLinks keys on the slug directly; links have no edit history,
// the lowest sort order survives.
func (s *Syncer) dedupTemplateLinks(ctx context.Context) error {
	all, err := s.store.ListTemplateExercises(ctx)
	if err != nil {
		return err
	}
	groups := map[string][]models.TemplateExercise{}
	for _, te := range all {
		if te.SeedSlug == nil {
			continue
		}
		groups[*te.SeedSlug] = append(groups[*te.SeedSlug], te)
	}
	for slug, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		keep := rows[0]
		for _, r := range rows[1:] {
			if r.SortOrder < keep.SortOrder {
				keep = r
			}
		}
		s.log.Info(ctx, "deduplicating legacy seed links", "seedSlug", slug, "count", len(rows))
		for _, r := range rows {
			if r.ID == keep.ID {
				continue
			}
			if err := s.store.DeleteTemplateExercise(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
