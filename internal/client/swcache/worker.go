package swcache

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

// DefaultRetainedVersions bounds how many version caches survive activation.
const DefaultRetainedVersions = 12

// WorkerState follows the platform lifecycle of a deployed version.
type WorkerState int

const (
	StateNew WorkerState = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
)

// Response is an asset response, either from upstream or from cache.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// Upstream fetches an asset from the deployment server. bypassCache asks for
// a genuinely fresh copy (no intermediary cache).
type Upstream interface {
	Fetch(ctx context.Context, path string, bypassCache bool) (*Response, error)
}

// Worker is one version's cache manager: it precaches on install, warms and
// prunes on activate, and resolves fetches per request class.
type Worker struct {
	cache    *Cache
	upstream Upstream
	version  int64
	precache []string
	retain   int
	log      logging.Logger

	mu          sync.Mutex
	state       WorkerState
	skipWaiting bool
}

type Option func(*Worker)

func WithRetainedVersions(n int) Option {
	return func(w *Worker) { w.retain = n }
}

func NewWorker(cache *Cache, upstream Upstream, version int64, precache []string, log logging.Logger, opts ...Option) *Worker {
	w := &Worker{
		cache:    cache,
		upstream: upstream,
		version:  version,
		precache: precache,
		retain:   DefaultRetainedVersions,
		log:      log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// SkipWaiting promotes a waiting worker: the next Activate call proceeds
// without waiting for idle clients.
func (w *Worker) SkipWaiting() {
	w.mu.Lock()
	w.skipWaiting = true
	w.mu.Unlock()
}

// Install precaches every target individually with cache-bypass. A single
// asset failing must not abort the rest; a sparse cache self-heals on demand.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	for _, p := range w.precache {
		resp, err := w.upstream.Fetch(ctx, p, true)
		if err != nil || resp.Status != http.StatusOK {
			w.log.Warn(ctx, "precache miss", "path", p, "error", err)
			precacheMisses.Inc()
			continue
		}
		if err := w.cache.Put(w.version, p, Entry{Body: resp.Body, ContentType: resp.ContentType}); err != nil {
			w.log.Warn(ctx, "precache write failed", "path", p, "error", err)
			continue
		}
	}
	w.setState(StateInstalled)
	return nil
}

// Activate takes over: warms the app shell so an immediate offline relaunch
// works, then prunes old version caches oldest-first. Prior versions are not
// wiped outright because a stale client may still need their hashed assets.
func (w *Worker) Activate(ctx context.Context) error {
	w.setState(StateActivating)

	if resp, err := w.upstream.Fetch(ctx, "/", true); err == nil && resp.Status == http.StatusOK {
		if err := w.cache.Put(w.version, "/", Entry{Body: resp.Body, ContentType: resp.ContentType}); err != nil {
			w.log.Warn(ctx, "app shell warm failed", "error", err)
		}
	}

	if err := w.cache.Prune(w.retain); err != nil {
		w.log.Warn(ctx, "cache prune failed", "error", err)
	}

	w.setState(StateActivated)
	return nil
}

// request classes

func isVersionProbe(p string) bool {
	return NormalizeKey(p) == "/app/version.json" || NormalizeKey(p) == "/version.json"
}

func isImmutable(p string) bool {
	return strings.Contains(NormalizeKey(p), "/immutable/")
}

func isScript(p string) bool {
	ext := path.Ext(NormalizeKey(p))
	return ext == ".js" || ext == ".mjs"
}

func isNavigation(p string) bool {
	key := NormalizeKey(p)
	return key == "/" || strings.HasSuffix(key, ".html") || path.Ext(key) == ""
}

// Fetch resolves one request according to its class policy.
func (w *Worker) Fetch(ctx context.Context, reqPath string) (*Response, error) {
	switch {
	case isVersionProbe(reqPath):
		// The version marker must never be served stale.
		return w.upstream.Fetch(ctx, reqPath, true)
	case isImmutable(reqPath):
		return w.cacheFirst(ctx, reqPath)
	case isScript(reqPath):
		return w.scriptNetworkFirst(ctx, reqPath)
	case isNavigation(reqPath):
		return w.navigate(ctx, reqPath)
	default:
		return w.cacheFirst(ctx, reqPath)
	}
}

func (w *Worker) cacheFirst(ctx context.Context, reqPath string) (*Response, error) {
	if e, err := w.cache.Get(w.version, reqPath); err == nil {
		cacheHits.WithLabelValues("current").Inc()
		return &Response{Status: http.StatusOK, Body: e.Body, ContentType: e.ContentType}, nil
	}
	resp, err := w.upstream.Fetch(ctx, reqPath, false)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusOK {
		if err := w.cache.Put(w.version, reqPath, Entry{Body: resp.Body, ContentType: resp.ContentType}); err != nil {
			w.log.Warn(ctx, "cache populate failed", "path", reqPath, "error", err)
		}
	}
	return resp, nil
}

// scriptNetworkFirst protects stale documents: an old HTML page may import a
// hashed filename the server deleted after a deploy, and failing that import
// kills the page. Cache fallback searches every retained version.
func (w *Worker) scriptNetworkFirst(ctx context.Context, reqPath string) (*Response, error) {
	resp, err := w.upstream.Fetch(ctx, reqPath, false)
	if err == nil && resp.Status == http.StatusOK {
		if putErr := w.cache.Put(w.version, reqPath, Entry{Body: resp.Body, ContentType: resp.ContentType}); putErr != nil {
			w.log.Warn(ctx, "cache populate failed", "path", reqPath, "error", putErr)
		}
		return resp, nil
	}

	if e, v, lookErr := w.cache.Lookup(reqPath); lookErr == nil {
		w.log.Info(ctx, "serving script from cache fallback", "path", reqPath, "cacheVersion", v)
		cacheHits.WithLabelValues("fallback").Inc()
		return &Response{Status: http.StatusOK, Body: e.Body, ContentType: e.ContentType}, nil
	} else if !errors.Is(lookErr, common.ErrorNotFound) {
		return nil, lookErr
	}

	if err != nil {
		return &Response{Status: http.StatusServiceUnavailable, Body: []byte("script unavailable"), ContentType: "text/plain"}, nil
	}
	return resp, nil
}

// navigate forces fresh HTML when online; stale HTML is the root cause of
// most broken updates. The successful response is cached under its
// normalized key for offline use.
func (w *Worker) navigate(ctx context.Context, reqPath string) (*Response, error) {
	resp, err := w.upstream.Fetch(ctx, NormalizeKey(reqPath), true)
	if err == nil && resp.Status < http.StatusInternalServerError {
		if resp.Status == http.StatusOK {
			if putErr := w.cache.Put(w.version, reqPath, Entry{Body: resp.Body, ContentType: resp.ContentType}); putErr != nil {
				w.log.Warn(ctx, "navigation cache failed", "path", reqPath, "error", putErr)
			}
		}
		return resp, nil
	}

	if e, _, lookErr := w.cache.Lookup(reqPath); lookErr == nil {
		cacheHits.WithLabelValues("offline").Inc()
		return &Response{Status: http.StatusOK, Body: e.Body, ContentType: e.ContentType}, nil
	}

	if NormalizeKey(reqPath) == "/" {
		// The app itself is fully client-side; serve a bootable shell.
		return offlineAppPage(), nil
	}
	return offlinePage(), nil
}
