package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/logging"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

type fakeTransport struct {
	mu     sync.Mutex
	pushes []*syncapi.PushRequest
	pull   *syncapi.PullResponse

	pushSyncedAt time.Time
	pushErr      error
	pullErr      error
	pingErr      error
}

func (f *fakeTransport) Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	copied := *req
	f.pushes = append(f.pushes, &copied)
	at := f.pushSyncedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &syncapi.PushResponse{SyncedAt: at}, nil
}

func (f *fakeTransport) Pull(ctx context.Context, lastSyncAt string) (*syncapi.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pull != nil {
		return f.pull, nil
	}
	return &syncapi.PullResponse{SyncedAt: time.Now().UTC()}, nil
}

func (f *fakeTransport) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeTransport) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func setupSyncer(t *testing.T) (*Syncer, *store.Store, *fakeTransport) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tr := &fakeTransport{}
	s := New(st, tr, "user-1", logging.Nop(), WithDebounce(time.Hour))
	s.SetOnline(true)
	return s, st, tr
}

func newBand(id, name string, updated time.Time) *models.Band {
	b := &models.Band{}
	b.ID = id
	b.Name = name
	b.Resistance = 10
	b.CreatedAt = updated
	b.UpdatedAt = updated
	return b
}

func TestFullSync_OfflineIsNoop(t *testing.T) {
	s, st, tr := setupSyncer(t)
	s.SetOnline(false)

	require.NoError(t, st.UpsertBand(context.Background(), newBand("b1", "Red", time.Now().UTC())))
	require.NoError(t, s.FullSync(context.Background()))
	assert.Zero(t, tr.pushCount())
}

func TestFullSync_NoUserIsNoop(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tr := &fakeTransport{}
	s := New(st, tr, "", logging.Nop(), WithDebounce(time.Millisecond))
	s.SetOnline(true)

	ctx := context.Background()
	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "Red", time.Now().UTC())))

	require.NoError(t, s.FullSync(ctx))
	assert.Zero(t, tr.pushCount())

	s.TriggerSync()
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	assert.Nil(t, timer, "no round may be scheduled without a user")
}

func TestFullSync_ServerClockBehindStillMarksSynced(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()

	// A lagging server cursor must not keep pushed rows dirty.
	tr.pushSyncedAt = time.Now().UTC().Add(-time.Hour)

	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "Red", time.Now().UTC())))
	require.NoError(t, s.FullSync(ctx))

	dirty, err := st.DirtyBands(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	require.NoError(t, s.FullSync(ctx))
	assert.Equal(t, 1, tr.pushCount())
}

func TestFullSync_PushesDirtyRowsAndMarksSynced(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "Red", time.Now().UTC())))
	require.NoError(t, s.FullSync(ctx))

	require.Equal(t, 1, tr.pushCount())
	require.Len(t, tr.pushes[0].Bands, 1)
	assert.Equal(t, "Red", tr.pushes[0].Bands[0].Name)

	dirty, err := st.DirtyBands(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty, "pushed rows must not stay dirty")

	state := s.State()
	assert.False(t, state.Syncing)
	assert.NoError(t, state.Err)
	assert.NotNil(t, state.LastSyncAt)
}

func TestFullSync_Idempotent(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "Red", time.Now().UTC())))
	require.NoError(t, s.FullSync(ctx))
	require.NoError(t, s.FullSync(ctx))

	// The second round found nothing dirty, so only one push happened.
	assert.Equal(t, 1, tr.pushCount())
}

func TestFullSync_AdvancesCursor(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.FullSync(ctx))

	cursor, err := st.GetMetadata(ctx, lastSyncAtKey+"user-1")
	require.NoError(t, err)
	require.NotEmpty(t, cursor)
	_, err = time.Parse(cursorTimeLayout, cursor)
	assert.NoError(t, err)
}

func TestFullSync_PullErrorKeepsCursor(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.FullSync(ctx))
	before, err := st.GetMetadata(ctx, lastSyncAtKey+"user-1")
	require.NoError(t, err)

	tr.pullErr = assert.AnError
	require.Error(t, s.FullSync(ctx))

	after, err := st.GetMetadata(ctx, lastSyncAtKey+"user-1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed round must not advance the cursor")

	state := s.State()
	assert.Error(t, state.Err)
	assert.False(t, state.Syncing)
}

func TestApply_LastWriteWins(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	// Local row is newer than pulled: keep local.
	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "local-newer", t0.Add(time.Minute))))
	// Local row is older than pulled: take pulled.
	require.NoError(t, st.UpsertBand(ctx, newBand("b2", "local-older", t0.Add(-time.Minute))))

	pulled1 := newBand("b1", "remote", t0)
	pulled2 := newBand("b2", "remote", t0)
	tr.pull = &syncapi.PullResponse{
		Bands:    []syncapi.Band{pulled1.Band, pulled2.Band},
		SyncedAt: time.Now().UTC(),
	}

	require.NoError(t, s.FullSync(ctx))

	b1, err := st.GetBand(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "local-newer", b1.Name)

	b2, err := st.GetBand(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, "remote", b2.Name)
	assert.NotNil(t, b2.SyncedAt)
}

func TestApply_EqualTimestampsKeepLocal(t *testing.T) {
	s, st, tr := setupSyncer(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, st.UpsertBand(ctx, newBand("b1", "local", t0)))
	remote := newBand("b1", "remote", t0)
	tr.pull = &syncapi.PullResponse{Bands: []syncapi.Band{remote.Band}, SyncedAt: time.Now().UTC()}

	require.NoError(t, s.FullSync(ctx))

	got, err := st.GetBand(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Name)
}

func TestTriggerSync_DebouncesIntoOneRound(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tr := &fakeTransport{}
	s := New(st, tr, "user-1", logging.Nop(), WithDebounce(50*time.Millisecond))
	s.SetOnline(true)

	require.NoError(t, st.UpsertBand(context.Background(), newBand("b1", "Red", time.Now().UTC())))
	for i := 0; i < 5; i++ {
		s.TriggerSync()
	}

	assert.Eventually(t, func() bool { return tr.pushCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, tr.pushCount())
}

func TestUserIDFromToken(t *testing.T) {
	// HS256 token with sub "user-42", unverified parse only reads claims.
	const tok = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJzdWIiOiJ1c2VyLTQyIn0." +
		"invalid-signature"
	id, err := UserIDFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)

	_, err = UserIDFromToken("not-a-token")
	assert.Error(t, err)
}
