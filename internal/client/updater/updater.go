// Package updater moves the client onto a newly deployed build exactly once,
// without ever reload-looping: an intermediary cache can keep serving the old
// build, and blindly reloading on "update available" would loop forever.
package updater

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mzhdanov/bandtrack/internal/logging"
)

const (
	leavingVersionKey = "updatingFromVersion"
	attemptCountKey   = "updateAttemptCount"

	// MaxRetries bounds reload retries after the initial attempt.
	MaxRetries = 3

	// ControlWaitTimeout bounds the wait for the new worker to take over;
	// some platforms never fire the signal.
	ControlWaitTimeout = 15 * time.Second
)

// WorkerController is the cache-manager side the updater drives.
type WorkerController interface {
	// CheckForUpdate forces an update check now; periodic checks are not
	// enough because a changed version marker alone does not trigger one.
	CheckForUpdate(ctx context.Context) error
	// Waiting reports whether a new worker is installed and waiting.
	Waiting() bool
	// SkipWaiting promotes the waiting worker immediately.
	SkipWaiting()
	// WaitForControlChange blocks until the new worker controls the client
	// or ctx expires.
	WaitForControlChange(ctx context.Context) error
	// HardReset unregisters the worker and clears every cache.
	HardReset(ctx context.Context) error
}

// Navigator performs the actual reload.
type Navigator interface {
	// ReloadReplace navigates to url replacing the current history entry, so
	// repeated update reloads do not pollute back-history.
	ReloadReplace(url string)
}

type Updater struct {
	session   SessionStore
	ctrl      WorkerController
	nav       Navigator
	log       logging.Logger
	version   string
	userAgent string
	online    func() bool

	waitTimeout time.Duration
	acted       bool
}

type Option func(*Updater)

// WithWaitTimeout overrides the control-change wait bound.
func WithWaitTimeout(d time.Duration) Option {
	return func(u *Updater) { u.waitTimeout = d }
}

func WithUserAgent(ua string) Option {
	return func(u *Updater) { u.userAgent = ua }
}

func New(session SessionStore, ctrl WorkerController, nav Navigator, version string, online func() bool, log logging.Logger, opts ...Option) *Updater {
	u := &Updater{
		session:     session,
		ctrl:        ctrl,
		nav:         nav,
		log:         log,
		version:     version,
		online:      online,
		waitTimeout: ControlWaitTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ClearUpdating is the startup success exit: if the last session was leaving
// a version and we are now on a different one, the update landed; drop the
// markers so the next update starts with a clean counter.
func (u *Updater) ClearUpdating() bool {
	leaving := u.session.Get(leavingVersionKey)
	if leaving == "" || leaving == u.version {
		return false
	}
	u.log.Info(context.Background(), "update landed", "from", leaving, "to", u.version)
	u.session.Delete(leavingVersionKey)
	u.session.Delete(attemptCountKey)
	return true
}

// OnUpdateAvailable reacts to the update-available flag. Acts only on the
// home/idle screen and only once per session; a mid-workflow user is never
// reloaded out of their task.
func (u *Updater) OnUpdateAvailable(ctx context.Context, onHomeScreen bool) {
	if !onHomeScreen || u.acted {
		return
	}
	u.acted = true

	attempts := 0
	if u.session.Get(leavingVersionKey) == u.version {
		// The previous reload landed back on the same build: an intermediary
		// cache served it again. Count it and retry within the bound.
		attempts, _ = strconv.Atoi(u.session.Get(attemptCountKey))
		attempts++
		if attempts > MaxRetries {
			u.log.Warn(ctx, "update retry bound reached, staying on current build", "version", u.version)
			if u.isUnreliablePlatform() && u.online() {
				if err := u.ctrl.HardReset(ctx); err != nil {
					u.log.Error(ctx, "hard reset failed", "error", err)
				}
			}
			return
		}
	}

	u.session.Set(leavingVersionKey, u.version)
	u.session.Set(attemptCountKey, strconv.Itoa(attempts))
	u.reload(ctx)
}

func (u *Updater) reload(ctx context.Context) {
	if err := u.ctrl.CheckForUpdate(ctx); err != nil {
		u.log.Warn(ctx, "update check failed", "error", err)
	}
	if u.ctrl.Waiting() {
		u.ctrl.SkipWaiting()
	}

	waitCtx, cancel := context.WithTimeout(ctx, u.waitTimeout)
	defer cancel()
	if err := u.ctrl.WaitForControlChange(waitCtx); err != nil {
		u.log.Warn(ctx, "control change not observed, reloading anyway", "error", err)
	}

	u.nav.ReloadReplace("/?v=" + strconv.FormatInt(time.Now().UnixMilli(), 10))
}

// isUnreliablePlatform sniffs for WebKit, whose worker update signaling is
// known to stall. Chrome ships "AppleWebKit" in its UA, so exclude it.
func (u *Updater) isUnreliablePlatform() bool {
	ua := u.userAgent
	return strings.Contains(ua, "AppleWebKit") && !strings.Contains(ua, "Chrome") && !strings.Contains(ua, "Chromium")
}
