package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

func seededBand(id, slug, name string, updated time.Time) *models.Band {
	b := newBand(id, name, updated)
	s := slug
	b.SeedSlug = &s
	return b
}

func TestApply_SeedCollisionRemapsAndDeletes(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// This device seeded dec-red under its own id and logged against it.
	require.NoError(t, st.UpsertBand(ctx, seededBand("local-red", "dec-red", "Red", now)))

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
	leb.BandID = "local-red"
	require.NoError(t, st.UpsertLoggedExerciseBand(ctx, leb))

	// Another device seeded the same catalog entry under a different id and
	// pushed first; its row arrives in the pull.
	remote := seededBand("remote-red", "dec-red", "Red", now.Add(time.Second))
	tr.pull = &syncapi.PullResponse{Bands: []syncapi.Band{remote.Band}, SyncedAt: time.Now().UTC()}

	require.NoError(t, s.FullSync(ctx))

	// Exactly one dec-red remains, under the pulled id.
	survivor, err := st.FindBandBySeedSlug(ctx, "dec-red")
	require.NoError(t, err)
	assert.Equal(t, "remote-red", survivor.ID)

	_, err = st.GetBand(ctx, "local-red")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	// The log row follows the surviving id.
	refs, err := st.LoggedExerciseBandsByLog(ctx, "le1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "remote-red", refs[0].BandID)
}

func TestApply_SeedCollisionSameIDIsPlainUpsert(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, st.UpsertBand(ctx, seededBand("b1", "dec-red", "Red", now)))

	remote := seededBand("b1", "dec-red", "Crimson", now.Add(time.Second))
	tr.pull = &syncapi.PullResponse{Bands: []syncapi.Band{remote.Band}, SyncedAt: time.Now().UTC()}

	require.NoError(t, s.FullSync(ctx))

	got, err := st.GetBand(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Crimson", got.Name)

	all, err := st.ListBands(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApply_JunctionRowsAlwaysUpserted(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ex := &models.Exercise{}
	ex.ID = "e1"
	ex.Name = "Deadlift"
	ex.CreatedAt, ex.UpdatedAt = now, now
	require.NoError(t, st.UpsertExercise(ctx, ex))

	tpl := &models.WorkoutTemplate{}
	tpl.ID = "t1"
	tpl.Name = "Pull Day"
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	require.NoError(t, st.UpsertTemplate(ctx, tpl))

	link := syncapi.TemplateExercise{ID: "te1", TemplateID: "t1", ExerciseID: "e1", SortOrder: 3}
	tr.pull = &syncapi.PullResponse{TemplateExercises: []syncapi.TemplateExercise{link}, SyncedAt: time.Now().UTC()}

	require.NoError(t, s.FullSync(ctx))

	links, err := st.TemplateExercisesByTemplate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 3, links[0].SortOrder)
	assert.NotNil(t, links[0].SyncedAt)
}

func TestApply_OrphanLogRowIsSkipped(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()

	// References a session this device never had.
	orphan := syncapi.LoggedExercise{ID: "le1", SessionID: "ghost", ExerciseID: "ghost", LoggedAt: time.Now().UTC()}
	tr.pull = &syncapi.PullResponse{LoggedExercises: []syncapi.LoggedExercise{orphan}, SyncedAt: time.Now().UTC()}

	require.NoError(t, s.FullSync(ctx))

	dirty, err := st.DirtyLoggedExercises(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}
