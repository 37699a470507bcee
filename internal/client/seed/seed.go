// Package seed installs the default band, exercise and template catalog.
// Every catalog row carries a stable slug so the same entry created on two
// offline devices can be recognized as one row during sync.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/common"
)

type seededBand struct {
	Slug       string
	Name       string
	Resistance float64
	Color      string
}

type seededExercise struct {
	Slug string
	Name string
}

type seededTemplate struct {
	Slug          string
	Name          string
	ExerciseSlugs []string
}

var seededBands = []seededBand{
	// X3
	{"x3-white-2x", "White 2x", 100, "#FFFFFF"},

	// Decathlon
	{"dec-orange-light", "Orange Light", 77, "#FF8C00"},
	{"dec-orange-light-2x", "Orange Light 2x", 154, "#FF8C00"},
	{"dec-red", "Red", 99, "#FF0000"},
	{"dec-red-2x", "Red 2x", 198, "#FF0000"},
	{"dec-black", "Black", 132, "#000000"},
	{"dec-black-2x", "Black 2x", 264, "#000000"},

	// Strength Shop
	{"dec-orange-heavy-strength-shop", "Orange Heavy", 174, "#CC6600"},
	{"dec-orange-heavy-2x-strength-shop", "Orange Heavy 2x", 348, "#CC6600"},
}

var seededExercises = []seededExercise{
	{"chest-press", "Chest Press"},
	{"chest-press-pec-crossover", "Chest Press (Pec Crossover)"},
	{"overhead-press", "Overhead Press"},
	{"tricep-press", "Tricep Press"},
	{"squat-front", "Squat (Front)"},
	{"deadlift", "Deadlift"},
	{"bicep-curl", "Bicep Curl"},
	{"row-bent", "Row (Bent)"},
	{"calf-raise", "Calf Raise"},
}

var seededTemplates = []seededTemplate{
	{
		Slug: "template-push-day",
		Name: "Push Day",
		ExerciseSlugs: []string{
			"chest-press",
			"chest-press-pec-crossover",
			"overhead-press",
			"tricep-press",
			"squat-front",
		},
	},
	{
		Slug: "template-pull-day",
		Name: "Pull Day",
		ExerciseSlugs: []string{
			"deadlift",
			"bicep-curl",
			"row-bent",
			"calf-raise",
		},
	},
}

// LinkSlug is the stable slug of a template-exercise link.
func LinkSlug(templateSlug, exerciseSlug string) string {
	return templateSlug + "-" + exerciseSlug
}

// Apply is idempotent per slug. Rows are inserted one at a time with fresh
// timestamps so their createdAt ordering is stable; a pre-slug legacy row
// matching by attributes (bands) or name (exercises, templates) gets adopted
// by stamping the slug on it instead of inserting a duplicate.
func Apply(ctx context.Context, s *store.Store) error {
	if err := applyBands(ctx, s); err != nil {
		return err
	}
	if err := applyExercises(ctx, s); err != nil {
		return err
	}
	return applyTemplates(ctx, s)
}

func applyBands(ctx context.Context, s *store.Store) error {
	for _, sb := range seededBands {
		_, err := s.FindBandBySeedSlug(ctx, sb.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("seed band %s: %w", sb.Slug, err)
		}

		existing, err := s.FindBandByAttributes(ctx, sb.Name, sb.Resistance, sb.Color)
		if err == nil {
			if err := s.SetBandSeedSlug(ctx, existing.ID, sb.Slug); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("seed band %s: %w", sb.Slug, err)
		}

		now := time.Now().UTC()
		b := &models.Band{}
		b.ID = models.NewID()
		b.Name = sb.Name
		b.Resistance = sb.Resistance
		color, slug := sb.Color, sb.Slug
		b.Color = &color
		b.SeedSlug = &slug
		b.CreatedAt, b.UpdatedAt = now, now
		if err := s.UpsertBand(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func applyExercises(ctx context.Context, s *store.Store) error {
	for _, se := range seededExercises {
		if _, err := ensureExercise(ctx, s, se); err != nil {
			return err
		}
	}
	return nil
}

// ensureExercise returns the id of the catalog exercise, adopting a same-name
// legacy row or inserting a fresh one as needed.
func ensureExercise(ctx context.Context, s *store.Store, se seededExercise) (string, error) {
	e, err := s.FindExerciseBySeedSlug(ctx, se.Slug)
	if err == nil {
		return e.ID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("seed exercise %s: %w", se.Slug, err)
	}

	e, err = s.FindExerciseByName(ctx, se.Name)
	if err == nil {
		return e.ID, s.SetExerciseSeedSlug(ctx, e.ID, se.Slug)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("seed exercise %s: %w", se.Slug, err)
	}

	now := time.Now().UTC()
	slug := se.Slug
	ne := &models.Exercise{}
	ne.ID = models.NewID()
	ne.Name = se.Name
	ne.SeedSlug = &slug
	ne.CreatedAt, ne.UpdatedAt = now, now
	if err := s.UpsertExercise(ctx, ne); err != nil {
		return "", err
	}
	return ne.ID, nil
}

func applyTemplates(ctx context.Context, s *store.Store) error {
	for _, st := range seededTemplates {
		templateID, err := ensureTemplate(ctx, s, st)
		if err != nil {
			return err
		}
		for i, exSlug := range st.ExerciseSlugs {
			se, ok := findSeededExercise(exSlug)
			if !ok {
				continue
			}
			exerciseID, err := ensureExercise(ctx, s, se)
			if err != nil {
				return err
			}
			if err := ensureLink(ctx, s, st.Slug, templateID, exerciseID, exSlug, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func findSeededExercise(slug string) (seededExercise, bool) {
	for _, se := range seededExercises {
		if se.Slug == slug {
			return se, true
		}
	}
	return seededExercise{}, false
}

func ensureTemplate(ctx context.Context, s *store.Store, st seededTemplate) (string, error) {
	t, err := s.FindTemplateBySeedSlug(ctx, st.Slug)
	if err == nil {
		return t.ID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("seed template %s: %w", st.Slug, err)
	}

	t, err = s.FindTemplateByName(ctx, st.Name)
	if err == nil {
		return t.ID, s.SetTemplateSeedSlug(ctx, t.ID, st.Slug)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("seed template %s: %w", st.Slug, err)
	}

	now := time.Now().UTC()
	slug := st.Slug
	nt := &models.WorkoutTemplate{}
	nt.ID = models.NewID()
	nt.Name = st.Name
	nt.SeedSlug = &slug
	nt.CreatedAt, nt.UpdatedAt = now, now
	if err := s.UpsertTemplate(ctx, nt); err != nil {
		return "", err
	}
	return nt.ID, nil
}

func ensureLink(ctx context.Context, s *store.Store, templateSlug, templateID, exerciseID, exerciseSlug string, sortOrder int) error {
	linkSlug := LinkSlug(templateSlug, exerciseSlug)

	if _, err := s.FindTemplateExerciseBySeedSlug(ctx, linkSlug); err == nil {
		return nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("seed link %s: %w", linkSlug, err)
	}

	existing, err := s.FindTemplateExerciseByPair(ctx, templateID, exerciseID)
	if err == nil {
		return s.SetTemplateExerciseSeedSlug(ctx, existing.ID, linkSlug)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("seed link %s: %w", linkSlug, err)
	}

	te := &models.TemplateExercise{}
	te.ID = models.NewID()
	te.TemplateID = templateID
	te.ExerciseID = exerciseID
	te.SeedSlug = &linkSlug
	te.SortOrder = sortOrder
	return s.UpsertTemplateExercise(ctx, te)
}
