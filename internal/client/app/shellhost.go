package app

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"

	"github.com/mzhdanov/bandtrack/internal/client/swcache"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

// ShellHost serves the app shell through the versioned cache, playing the
// roles a browser splits between the service-worker registry and the page:
// it keeps one active worker, installs a pending one when the deployment
// version changes, and promotes it on SkipWaiting. It satisfies both the
// updater's WorkerController and Navigator.
type ShellHost struct {
	cache    *swcache.Cache
	upstream swcache.Upstream
	precache []string
	log      logging.Logger

	mu         sync.Mutex
	active     *swcache.Worker
	pending    *swcache.Worker
	version    string
	pendingVer string
	// control is closed and replaced when a promoted worker takes over.
	control chan struct{}
}

func NewShellHost(cache *swcache.Cache, upstream swcache.Upstream, precache []string, log logging.Logger) *ShellHost {
	return &ShellHost{
		cache:    cache,
		upstream: upstream,
		precache: precache,
		log:      log.With("component", "shellhost"),
		control:  make(chan struct{}),
	}
}

// versionID folds the deployment's version string into the numeric cache
// namespace. Timestamp-style versions map directly; anything else hashes.
func versionID(version string) int64 {
	if n, err := strconv.ParseInt(version, 10, 64); err == nil {
		return n
	}
	f := fnv.New64a()
	_, _ = f.Write([]byte(version))
	return int64(f.Sum64() & (1<<62 - 1))
}

// fetchVersion probes the deployment marker, always bypassing caches.
func (h *ShellHost) fetchVersion(ctx context.Context) (string, error) {
	resp, err := h.upstream.Fetch(ctx, "/app/version.json", true)
	if err != nil {
		return "", err
	}
	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("version probe status %d", resp.Status)
	}
	var v struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return "", fmt.Errorf("version probe body: %w", err)
	}
	return v.Version, nil
}

// Start installs and activates the first worker. An unreachable server is not
// fatal: the host starts a worker over the newest local cache version so the
// shell still serves offline.
func (h *ShellHost) Start(ctx context.Context) error {
	version, err := h.fetchVersion(ctx)
	if err != nil {
		h.log.Warn(ctx, "version probe failed, starting offline", "error", err)
		version = "offline"
	}

	w := swcache.NewWorker(h.cache, h.upstream, versionID(version), h.precache, h.log)
	if err := w.Install(ctx); err != nil {
		return fmt.Errorf("install worker: %w", err)
	}
	if err := w.Activate(ctx); err != nil {
		return fmt.Errorf("activate worker: %w", err)
	}

	h.mu.Lock()
	h.active = w
	h.version = version
	h.mu.Unlock()
	return nil
}

// Version returns the deployment version the active worker was built for.
func (h *ShellHost) Version() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// UpdateAvailable probes the server and reports whether it runs a different
// version than the active worker.
func (h *ShellHost) UpdateAvailable(ctx context.Context) (bool, error) {
	remote, err := h.fetchVersion(ctx)
	if err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return remote != h.version, nil
}

// CheckForUpdate probes the server and installs a pending worker when the
// deployment moved. Install runs synchronously; on return the new worker is
// waiting.
func (h *ShellHost) CheckForUpdate(ctx context.Context) error {
	remote, err := h.fetchVersion(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if remote == h.version || remote == h.pendingVer {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	w := swcache.NewWorker(h.cache, h.upstream, versionID(remote), h.precache, h.log)
	if err := w.Install(ctx); err != nil {
		return fmt.Errorf("install pending worker: %w", err)
	}

	h.mu.Lock()
	h.pending = w
	h.pendingVer = remote
	h.mu.Unlock()
	h.log.Info(ctx, "new worker waiting", "version", remote)
	return nil
}

func (h *ShellHost) Waiting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending != nil
}

// SkipWaiting promotes the pending worker: it activates (warming the shell
// and pruning old cache versions) and takes over serving, then the control
// change is broadcast to any WaitForControlChange callers.
func (h *ShellHost) SkipWaiting() {
	h.mu.Lock()
	w := h.pending
	ver := h.pendingVer
	h.mu.Unlock()
	if w == nil {
		return
	}

	w.SkipWaiting()
	go func() {
		ctx := context.Background()
		if err := w.Activate(ctx); err != nil {
			h.log.Warn(ctx, "pending worker activate failed", "error", err)
		}

		h.mu.Lock()
		h.active = w
		h.version = ver
		h.pending = nil
		h.pendingVer = ""
		close(h.control)
		h.control = make(chan struct{})
		h.mu.Unlock()
	}()
}

// WaitForControlChange blocks until a promoted worker takes over or ctx
// expires.
func (h *ShellHost) WaitForControlChange(ctx context.Context) error {
	h.mu.Lock()
	ch := h.control
	h.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HardReset clears every cache version. The next Start rebuilds from the
// network.
func (h *ShellHost) HardReset(ctx context.Context) error {
	h.log.Warn(ctx, "hard reset: clearing all cache versions")
	return h.cache.DeleteAll()
}

// ReloadReplace re-enters the shell through the now-controlling worker, the
// headless equivalent of a page reload with a cache-busting URL.
func (h *ShellHost) ReloadReplace(url string) {
	ctx := context.Background()
	h.mu.Lock()
	w := h.active
	h.mu.Unlock()
	if w == nil {
		return
	}
	if _, err := w.Fetch(ctx, url); err != nil {
		h.log.Warn(ctx, "reload fetch failed", "url", url, "error", err)
	}
}

// ServeHTTP exposes the shell locally, resolving every request through the
// active worker's fetch policies.
func (h *ShellHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	worker := h.active
	h.mu.Unlock()
	if worker == nil {
		http.Error(w, "no active worker", http.StatusServiceUnavailable)
		return
	}

	resp, err := worker.Fetch(r.Context(), r.URL.RequestURI())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
