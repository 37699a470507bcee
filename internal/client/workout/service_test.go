package workout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/seed"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

type fakeSync struct {
	triggers int
}

func (f *fakeSync) TriggerSync() { f.triggers++ }

func setupService(t *testing.T) (*Service, *store.Store, *fakeSync) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs := &fakeSync{}
	return NewService(st, fs, logging.Nop()), st, fs
}

func TestAddBand_CreatesDoubledVariant(t *testing.T) {
	svc, _, fs := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddBand(ctx, "Red", 10, nil))

	bands, err := svc.Bands(ctx)
	require.NoError(t, err)
	require.Len(t, bands, 2)

	byName := map[string]float64{}
	for _, b := range bands {
		byName[b.Name] = b.Resistance
	}
	assert.Equal(t, float64(10), byName["Red"])
	assert.Equal(t, float64(20), byName["Red doubled"])
	assert.Equal(t, 1, fs.triggers)
}

func TestAddBand_NewRowsAreDirty(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddBand(ctx, "Red", 10, nil))

	dirty, err := st.DirtyBands(ctx)
	require.NoError(t, err)
	assert.Len(t, dirty, 2)
}

func TestDeleteBand_SeededSoftDeletes(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	require.NoError(t, seed.Apply(ctx, st))

	seeded, err := st.FindBandBySeedSlug(ctx, "dec-red")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBand(ctx, seeded.ID))

	got, err := st.GetBand(ctx, seeded.ID)
	require.NoError(t, err, "seeded band must survive as a soft-deleted row")
	assert.NotNil(t, got.DeletedAt)

	active, err := svc.Bands(ctx)
	require.NoError(t, err)
	for _, b := range active {
		assert.NotEqual(t, seeded.ID, b.ID)
	}
}

func TestDeleteBand_UserRowHardDeletes(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddBand(ctx, "Custom", 42, nil))
	bands, err := svc.Bands(ctx)
	require.NoError(t, err)

	for _, b := range bands {
		require.NoError(t, svc.DeleteBand(ctx, b.ID))
	}
	all, err := st.ListBands(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "unreferenced user bands are removed outright")
}

func TestDeleteBand_ReferencedUserRowFallsBackToSoftDelete(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddBand(ctx, "Custom", 42, nil))
	bands, err := svc.Bands(ctx)
	require.NoError(t, err)
	band := bands[0]

	ex, err := svc.AddExercise(ctx, "Chest Press")
	require.NoError(t, err)
	ws, err := svc.StartSession(ctx, nil)
	require.NoError(t, err)
	_, err = svc.LogExercise(ctx, ws.ID, ex.ID, []string{band.ID}, 10, 2, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBand(ctx, band.ID))

	got, err := st.GetBand(ctx, band.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestUpdateTemplate_ReplacesLinksInOrder(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	e1, err := svc.AddExercise(ctx, "Deadlift")
	require.NoError(t, err)
	e2, err := svc.AddExercise(ctx, "Bicep Curl")
	require.NoError(t, err)

	tpl, err := svc.AddTemplate(ctx, "Pull Day")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateTemplate(ctx, tpl.ID, "Pull Day", []string{e1.ID, e2.ID}))
	require.NoError(t, svc.UpdateTemplate(ctx, tpl.ID, "Pull Day B", []string{e2.ID}))

	templates, err := svc.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "Pull Day B", templates[0].Name)
	require.Len(t, templates[0].Exercises, 1)
	assert.Equal(t, e2.ID, templates[0].Exercises[0].ID)
}

func TestStartSession_PlansTemplateExercises(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	e1, err := svc.AddExercise(ctx, "Squat (Front)")
	require.NoError(t, err)
	tpl, err := svc.AddTemplate(ctx, "Push Day")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateTemplate(ctx, tpl.ID, "Push Day", []string{e1.ID}))

	ws, err := svc.StartSession(ctx, &tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e1.ID}, ws.PlannedExercises)
	require.NotNil(t, ws.TemplateID)
	assert.Equal(t, tpl.ID, *ws.TemplateID)
}

func TestEndSession_StampsEnd(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	ws, err := svc.StartSession(ctx, nil)
	require.NoError(t, err)

	notes := "felt strong"
	require.NoError(t, svc.EndSession(ctx, ws.ID, &notes))

	got, err := st.GetSession(ctx, ws.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.EndedAt)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "felt strong", *got.Notes)
}

func TestLogExercise_RecordsBands(t *testing.T) {
	svc, st, fs := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddBand(ctx, "Red", 10, nil))
	bands, err := svc.Bands(ctx)
	require.NoError(t, err)

	ex, err := svc.AddExercise(ctx, "Row (Bent)")
	require.NoError(t, err)
	ws, err := svc.StartSession(ctx, nil)
	require.NoError(t, err)

	le, err := svc.LogExercise(ctx, ws.ID, ex.ID, []string{bands[0].ID}, 12, 3, nil)
	require.NoError(t, err)

	logs, err := svc.SessionLogs(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 12, logs[0].FullReps)

	refs, err := st.LoggedExerciseBandsByLog(ctx, le.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	assert.Positive(t, fs.triggers)
}

func TestSettings_DefaultsThenUpdate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	st, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lbs", st.WeightUnit)
	assert.True(t, st.KeepScreenAwake)

	require.NoError(t, svc.UpdateSettings(ctx, "kg", false))
	st, err = svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kg", st.WeightUnit)
	assert.False(t, st.KeepScreenAwake)
}
