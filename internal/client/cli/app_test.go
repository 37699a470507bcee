package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/client/syncer"
	"github.com/mzhdanov/bandtrack/internal/client/workout"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

type fakeSyncControl struct {
	state   syncer.State
	manuals int
	err     error
}

func (f *fakeSyncControl) State() syncer.State { return f.state }
func (f *fakeSyncControl) ManualSync(ctx context.Context) error {
	f.manuals++
	return f.err
}
func (f *fakeSyncControl) TriggerSync() {}

func newScanner(input string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(input))
}

func muteOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(args ...any) (int, error) {
		var parts []string
		for _, a := range args {
			if s, ok := a.(string); ok {
				parts = append(parts, s)
			}
		}
		lines = append(lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func setupApp(t *testing.T, input string) (*App, *fakeSyncControl) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs := &fakeSyncControl{}
	svc := workout.NewService(st, fs, logging.Nop())
	return NewApp(svc, fs, strings.NewReader(input), io.Discard), fs
}

func TestApp_AddAndListBands(t *testing.T) {
	lines := muteOutput(t)
	ctx := context.Background()

	a, _ := setupApp(t, "Red\n15\ncrimson\n")
	require.NoError(t, a.AddBand(ctx))
	require.NoError(t, a.Bands(ctx))

	joined := strings.Join(*lines, "\n")
	assert.Contains(t, joined, "Red")
	assert.Contains(t, joined, "crimson")
	// the doubled companion band is created alongside
	assert.Contains(t, joined, "Red doubled")
}

func TestApp_AddBand_RejectsBadResistance(t *testing.T) {
	muteOutput(t)
	a, _ := setupApp(t, "Red\nheavy\n")
	require.Error(t, a.AddBand(context.Background()))
}

func TestApp_SessionLifecycle(t *testing.T) {
	lines := muteOutput(t)
	ctx := context.Background()

	a, _ := setupApp(t, "\n") // freeform session, no template
	require.NoError(t, a.StartSession(ctx))

	sessions, err := a.workout.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	ex, err := a.workout.AddExercise(ctx, "Squat")
	require.NoError(t, err)

	a.scanner = newScanner(id + "\n" + ex.ID + "\n\n12\n3\n\n")
	require.NoError(t, a.LogExercise(ctx))

	a.scanner = newScanner(id + "\ngood pump\n\n")
	require.NoError(t, a.EndSession(ctx))

	sessions, err = a.workout.Sessions(ctx)
	require.NoError(t, err)
	require.NotNil(t, sessions[0].EndedAt)
	require.NotNil(t, sessions[0].Notes)
	assert.Equal(t, "good pump", *sessions[0].Notes)

	logs, err := a.workout.SessionLogs(ctx, id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 12, logs[0].FullReps)
	assert.Equal(t, 3, logs[0].PartialReps)

	require.NoError(t, a.Sessions(ctx))
	assert.NotEmpty(t, *lines)
}

func TestApp_SettingsRoundTrip(t *testing.T) {
	muteOutput(t)
	ctx := context.Background()

	a, _ := setupApp(t, "kg\ny\n")
	require.NoError(t, a.Settings(ctx))

	s, err := a.workout.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kg", s.WeightUnit)
	assert.True(t, s.KeepScreenAwake)
}

func TestApp_Settings_KeepOnEmptyInput(t *testing.T) {
	muteOutput(t)
	ctx := context.Background()

	a, _ := setupApp(t, "\n")
	require.NoError(t, a.Settings(ctx))

	s, err := a.workout.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lbs", s.WeightUnit)
}

func TestApp_SyncReportsLastSync(t *testing.T) {
	lines := muteOutput(t)

	a, fs := setupApp(t, "")
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs.state = syncer.State{Online: true, LastSyncAt: &at}

	require.NoError(t, a.Sync(context.Background()))
	assert.Equal(t, 1, fs.manuals)
	assert.Contains(t, strings.Join(*lines, "\n"), "2025-06-01")
}

func TestApp_Status(t *testing.T) {
	a, fs := setupApp(t, "")

	assert.Equal(t, "(offline)", a.status())
	fs.state = syncer.State{Online: true, Syncing: true}
	assert.Equal(t, "(online, syncing)", a.status())
}
