package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/client/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestApply_FreshDatabase(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, Apply(ctx, s))

	bands, err := s.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, bands, len(seededBands))

	exercises, err := s.ListExercises(ctx)
	require.NoError(t, err)
	assert.Len(t, exercises, len(seededExercises))

	templates, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, len(seededTemplates))

	links, err := s.ListTemplateExercises(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 9)

	red, err := s.FindBandBySeedSlug(ctx, "dec-red")
	require.NoError(t, err)
	assert.Equal(t, "Red", red.Name)
	assert.Equal(t, float64(99), red.Resistance)
	require.NotNil(t, red.Color)
	assert.Equal(t, "#FF0000", *red.Color)
}

func TestApply_Idempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, Apply(ctx, s))
	require.NoError(t, Apply(ctx, s))

	bands, err := s.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, bands, len(seededBands))

	links, err := s.ListTemplateExercises(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 9)
}

func TestApply_AdoptsLegacyRows(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Pre-slug rows: same attributes, no seed slug.
	color := "#FF0000"
	legacyBand := &models.Band{}
	legacyBand.ID = "legacy-band"
	legacyBand.Name = "Red"
	legacyBand.Resistance = 99
	legacyBand.Color = &color
	legacyBand.CreatedAt, legacyBand.UpdatedAt = now, now
	require.NoError(t, s.UpsertBand(ctx, legacyBand))

	legacyEx := &models.Exercise{}
	legacyEx.ID = "legacy-ex"
	legacyEx.Name = "Deadlift"
	legacyEx.CreatedAt, legacyEx.UpdatedAt = now, now
	require.NoError(t, s.UpsertExercise(ctx, legacyEx))

	require.NoError(t, Apply(ctx, s))

	adopted, err := s.FindBandBySeedSlug(ctx, "dec-red")
	require.NoError(t, err)
	assert.Equal(t, "legacy-band", adopted.ID)

	adoptedEx, err := s.FindExerciseBySeedSlug(ctx, "deadlift")
	require.NoError(t, err)
	assert.Equal(t, "legacy-ex", adoptedEx.ID)

	// No duplicate inserted alongside the adopted rows.
	bands, err := s.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, bands, len(seededBands))
}

func TestLinkSlug(t *testing.T) {
	assert.Equal(t, "template-push-day-chest-press", LinkSlug("template-push-day", "chest-press"))
}
