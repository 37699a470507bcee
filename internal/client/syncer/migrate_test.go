package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/models"
)

func TestMigrateLegacySeeds_CollapsesDuplicates(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Two installs seeded dec-red independently; the newer one wins.
	require.NoError(t, st.UpsertBand(ctx, seededBand("red-old", "dec-red", "Red", now.Add(-time.Hour))))
	require.NoError(t, st.UpsertBand(ctx, seededBand("red-new", "dec-red", "Red", now)))

	// A log row still points at the losing duplicate.
	ex := &models.Exercise{}
	ex.ID = "e1"
	ex.Name = "Chest Press"
	ex.CreatedAt, ex.UpdatedAt = now, now
	require.NoError(t, st.UpsertExercise(ctx, ex))

	ws := &models.WorkoutSession{}
	ws.ID = "s1"
	ws.StartedAt, ws.UpdatedAt = now, now
	require.NoError(t, st.UpsertSession(ctx, ws))

	le := &models.LoggedExercise{}
	le.ID = "le1"
	le.SessionID = "s1"
	le.ExerciseID = "e1"
	le.LoggedAt = now
	require.NoError(t, st.UpsertLoggedExercise(ctx, le))

	leb := &models.LoggedExerciseBand{}
	leb.ID = "leb1"
	leb.LoggedExerciseID = "le1"
	leb.BandID = "red-old"
	require.NoError(t, st.UpsertLoggedExerciseBand(ctx, leb))

	require.NoError(t, s.migrateLegacySeeds(ctx))

	survivor, err := st.FindBandBySeedSlug(ctx, "dec-red")
	require.NoError(t, err)
	assert.Equal(t, "red-new", survivor.ID)

	all, err := st.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	refs, err := st.LoggedExerciseBandsByLog(ctx, "le1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "red-new", refs[0].BandID)
}

func TestMigrateLegacySeeds_LiveRowBeatsDeleted(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	deleted := seededBand("dead", "dec-black", "Black", now)
	d := now
	deleted.DeletedAt = &d
	require.NoError(t, st.UpsertBand(ctx, deleted))
	// Older but not deleted: still canonical.
	require.NoError(t, st.UpsertBand(ctx, seededBand("alive", "dec-black", "Black", now.Add(-time.Hour))))

	require.NoError(t, s.migrateLegacySeeds(ctx))

	survivor, err := st.FindBandBySeedSlug(ctx, "dec-black")
	require.NoError(t, err)
	assert.Equal(t, "alive", survivor.ID)
}

func TestMigrateLegacySeeds_LinkDuplicatesKeepLowestSortOrder(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	tpl := &models.WorkoutTemplate{}
	tpl.ID = "t1"
	tpl.Name = "Push Day"
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	require.NoError(t, st.UpsertTemplate(ctx, tpl))

	ex := &models.Exercise{}
	ex.ID = "e1"
	ex.Name = "Chest Press"
	ex.CreatedAt, ex.UpdatedAt = now, now
	require.NoError(t, st.UpsertExercise(ctx, ex))

	slug := "template-push-day-chest-press"
	for i, id := range []string{"te-a", "te-b"} {
		te := &models.TemplateExercise{}
		te.ID = id
		te.TemplateID = "t1"
		te.ExerciseID = "e1"
		te.SeedSlug = &slug
		te.SortOrder = i
		require.NoError(t, st.UpsertTemplateExercise(ctx, te))
	}

	require.NoError(t, s.migrateLegacySeeds(ctx))

	links, err := st.TemplateExercisesByTemplate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "te-a", links[0].ID)
	assert.Equal(t, 0, links[0].SortOrder)
}

func TestMigrateLegacySeeds_RunsOnce(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.migrateLegacySeeds(ctx))

	// Duplicates appearing after the marker is set are left alone.
	require.NoError(t, st.UpsertBand(ctx, seededBand("a", "dec-red", "Red", now)))
	require.NoError(t, st.UpsertBand(ctx, seededBand("b", "dec-red", "Red", now)))
	require.NoError(t, s.migrateLegacySeeds(ctx))

	all, err := st.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
