package swcache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]*Response
	errs      map[string]error
	calls     []string
	bypasses  []bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: map[string]*Response{},
		errs:      map[string]error{},
	}
}

func (f *fakeUpstream) set(path string, status int, body, ct string) {
	f.responses[path] = &Response{Status: status, Body: []byte(body), ContentType: ct}
}

func (f *fakeUpstream) Fetch(ctx context.Context, path string, bypassCache bool) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	f.bypasses = append(f.bypasses, bypassCache)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if resp, ok := f.responses[path]; ok {
		return resp, nil
	}
	return &Response{Status: http.StatusNotFound, Body: []byte("not found"), ContentType: "text/plain"}, nil
}

func (f *fakeUpstream) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == path {
			n++
		}
	}
	return n
}

func setupWorker(t *testing.T, version int64, precache []string) (*Worker, *Cache, *fakeUpstream) {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	up := newFakeUpstream()
	w := NewWorker(cache, up, version, precache, logging.Nop())
	return w, cache, up
}

func TestInstall_BestEffortPrecache(t *testing.T) {
	w, cache, up := setupWorker(t, 100, []string{"/", "/app/a.css", "/app/broken.css"})
	up.set("/", http.StatusOK, "<html>app</html>", "text/html")
	up.set("/app/a.css", http.StatusOK, "body{}", "text/css")
	up.errs["/app/broken.css"] = errors.New("connection refused")

	require.NoError(t, w.Install(context.Background()))
	assert.Equal(t, StateInstalled, w.State())

	_, err := cache.Get(100, "/")
	assert.NoError(t, err)
	_, err = cache.Get(100, "/app/a.css")
	assert.NoError(t, err)
	_, err = cache.Get(100, "/app/broken.css")
	assert.Error(t, err, "failed asset stays uncached, fetched on demand later")
}

func TestActivate_WarmsShellAndPrunes(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	for v := int64(1); v <= 15; v++ {
		require.NoError(t, cache.Put(v, "/x", Entry{Body: []byte("x")}))
	}
	up := newFakeUpstream()
	up.set("/", http.StatusOK, "<html>shell</html>", "text/html")
	w := NewWorker(cache, up, 16, nil, logging.Nop())

	require.NoError(t, w.Activate(context.Background()))
	assert.Equal(t, StateActivated, w.State())

	shell, err := cache.Get(16, "/")
	require.NoError(t, err)
	assert.Equal(t, "<html>shell</html>", string(shell.Body))

	versions, err := cache.ListVersions()
	require.NoError(t, err)
	assert.Len(t, versions, DefaultRetainedVersions)
	// Newest first, oldest pruned away.
	assert.Equal(t, int64(16), versions[0])
	assert.Equal(t, int64(5), versions[len(versions)-1])
}

func TestFetch_ImmutableCacheFirst(t *testing.T) {
	w, cache, up := setupWorker(t, 100, nil)
	require.NoError(t, cache.Put(100, "/app/immutable/chunk.abc123.js", Entry{Body: []byte("cached"), ContentType: "text/javascript"}))

	resp, err := w.Fetch(context.Background(), "/app/immutable/chunk.abc123.js")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(resp.Body))
	assert.Zero(t, up.callCount("/app/immutable/chunk.abc123.js"))
}

func TestFetch_ScriptFallsBackToOlderVersionCacheOn404(t *testing.T) {
	w, cache, _ := setupWorker(t, 200, nil)
	// The old deploy cached this hashed script; the server no longer has it.
	require.NoError(t, cache.Put(100, "/app/chunk.old.js", Entry{Body: []byte("old chunk"), ContentType: "text/javascript"}))

	resp, err := w.Fetch(context.Background(), "/app/chunk.old.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "old chunk", string(resp.Body))
}

func TestFetch_ScriptNetworkErrorNoCacheIs503(t *testing.T) {
	w, _, up := setupWorker(t, 200, nil)
	up.errs["/app/chunk.js"] = errors.New("offline")

	resp, err := w.Fetch(context.Background(), "/app/chunk.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestFetch_ScriptPrefersNetworkWhenAvailable(t *testing.T) {
	w, cache, up := setupWorker(t, 200, nil)
	require.NoError(t, cache.Put(200, "/app/chunk.js", Entry{Body: []byte("stale"), ContentType: "text/javascript"}))
	up.set("/app/chunk.js", http.StatusOK, "fresh", "text/javascript")

	resp, err := w.Fetch(context.Background(), "/app/chunk.js")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))
}

func TestFetch_NavigationCachesUnderNormalizedKey(t *testing.T) {
	w, cache, up := setupWorker(t, 100, nil)
	up.set("/", http.StatusOK, "<html>home</html>", "text/html")

	resp, err := w.Fetch(context.Background(), "/?v=12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	e, err := cache.Get(100, "/")
	require.NoError(t, err)
	assert.Equal(t, "<html>home</html>", string(e.Body))
}

func TestFetch_NavigationOfflineServesNewestCache(t *testing.T) {
	w, cache, up := setupWorker(t, 200, nil)
	require.NoError(t, cache.Put(100, "/", Entry{Body: []byte("older"), ContentType: "text/html"}))
	require.NoError(t, cache.Put(150, "/", Entry{Body: []byte("newer"), ContentType: "text/html"}))
	up.errs["/"] = errors.New("offline")

	resp, err := w.Fetch(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "newer", string(resp.Body))
}

func TestFetch_NavigationOfflineNoCache(t *testing.T) {
	w, _, up := setupWorker(t, 200, nil)
	up.errs["/"] = errors.New("offline")
	up.errs["/stats"] = errors.New("offline")

	// The app root still boots offline.
	resp, err := w.Fetch(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), "offline")

	// Other documents do not.
	resp, err = w.Fetch(context.Background(), "/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestFetch_VersionProbeNeverCached(t *testing.T) {
	w, cache, up := setupWorker(t, 100, nil)
	up.set("/app/version.json", http.StatusOK, `{"version":100}`, "application/json")

	for i := 0; i < 2; i++ {
		resp, err := w.Fetch(context.Background(), "/app/version.json")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
	}
	assert.Equal(t, 2, up.callCount("/app/version.json"))
	_, err := cache.Get(100, "/app/version.json")
	assert.Error(t, err)
}

func TestLookup_NewestVersionWins(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Put(1, "/a", Entry{Body: []byte("v1")}))
	require.NoError(t, cache.Put(2, "/a", Entry{Body: []byte("v2")}))

	e, v, err := cache.Lookup("/a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, "v2", string(e.Body))
}

func TestLookup_SparseVersionsAndMiss(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Put(1, "/a", Entry{Body: []byte("v1")}))
	require.NoError(t, cache.Put(2, "/b", Entry{Body: []byte("v2")}))

	// Only the older version holds /a; the miss in version 2 must not abort.
	e, v, err := cache.Lookup("/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, "v1", string(e.Body))

	_, _, err = cache.Lookup("/missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
