// Package syncer reconciles the local store with the sync server: dirty rows
// are pushed, the remote state is pulled and merged last-writer-wins, and a
// per-user cursor bounds the next incremental pull.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/logging"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

const (
	// DefaultDebounce batches bursts of local writes into one round.
	DefaultDebounce = 500 * time.Millisecond

	lastSyncAtKey    = "lastSyncAt:"
	seedDedupKey     = "seedDedupDone:"
	cursorTimeLayout = time.RFC3339Nano
)

// State is a snapshot of the engine, published to subscribers on change.
type State struct {
	Online     bool
	Syncing    bool
	LastSyncAt *time.Time
	Err        error
}

type Syncer struct {
	store     *store.Store
	transport Transport
	log       logging.Logger
	userID    string
	debounce  time.Duration

	mu       sync.Mutex
	state    State
	timer    *time.Timer
	onChange []func(State)
}

type Option func(*Syncer)

func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) { s.debounce = d }
}

func New(st *store.Store, tr Transport, userID string, log logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		store:     st,
		transport: tr,
		log:       log,
		userID:    userID,
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserIDFromToken extracts the subject claim without verifying the signature.
// The client only needs the id for scoping local metadata keys; the server is
// the one that verifies.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", common.ErrInvalidToken
	}
	return sub, nil
}

// Subscribe registers a state listener. Fired outside the mutex.
func (s *Syncer) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Syncer) publish(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	s.notifyLocked()
}

// notifyLocked snapshots state, releases the mutex and fires listeners.
func (s *Syncer) notifyLocked() {
	snapshot := s.state
	listeners := make([]func(State), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// SetOnline flips connectivity. Going online triggers a sync.
func (s *Syncer) SetOnline(online bool) {
	s.mu.Lock()
	was := s.state.Online
	s.mu.Unlock()
	s.publish(func(st *State) { st.Online = online })
	if online && !was {
		s.TriggerSync()
	}
}

// TriggerSync schedules a debounced sync round. Repeated calls within the
// debounce window collapse into one round. Without an authenticated user
// this is a silent no-op.
func (s *Syncer) TriggerSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.FullSync(context.Background()); err != nil {
			s.log.Warn(context.Background(), "background sync failed", "error", err)
		}
	})
}

// ManualSync cancels any pending debounced round and syncs immediately.
func (s *Syncer) ManualSync(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.FullSync(ctx)
}

// Watch polls the server and keeps the online flag current until ctx ends.
func (s *Syncer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SetOnline(s.transport.Ping(ctx) == nil)
		}
	}
}

// FullSync runs one complete round: legacy dedup (once), push dirty rows,
// pull remote state, merge, advance the cursor. Concurrent calls are
// collapsed: a round already in flight makes this call a no-op.
func (s *Syncer) FullSync(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return nil
	}
	if s.state.Syncing {
		s.mu.Unlock()
		return nil
	}
	if !s.state.Online {
		s.mu.Unlock()
		return nil
	}
	s.state.Syncing = true
	s.notifyLocked()

	started := time.Now()
	err := s.run(ctx)
	syncDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		syncsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, common.ErrorUnauthorized) {
			s.log.Error(ctx, "sync rejected, credentials invalid", "error", err)
		} else {
			s.log.Warn(ctx, "sync failed", "error", err)
		}
		s.publish(func(st *State) {
			st.Syncing = false
			st.Err = err
		})
		return err
	}

	syncsTotal.WithLabelValues("ok").Inc()
	now := time.Now().UTC()
	s.publish(func(st *State) {
		st.Syncing = false
		st.Err = nil
		st.LastSyncAt = &now
	})
	return nil
}

func (s *Syncer) run(ctx context.Context) error {
	if err := s.migrateLegacySeeds(ctx); err != nil {
		return fmt.Errorf("seed dedup migration: %w", err)
	}

	req, err := s.collectDirty(ctx)
	if err != nil {
		return err
	}

	if !req.Empty() {
		if _, err := s.transport.Push(ctx, req); err != nil {
			return err
		}
		// Stamp with the local clock: synced_at must catch up to updated_at
		// even when the server clock lags behind this device.
		if err := s.markSynced(ctx, req, time.Now().UTC()); err != nil {
			return err
		}
		pushedRows.Add(float64(countRows(req)))
	}

	cursor, err := s.store.GetMetadata(ctx, lastSyncAtKey+s.userID)
	if err != nil {
		return err
	}
	pull, err := s.transport.Pull(ctx, cursor)
	if err != nil {
		return err
	}
	if err := s.applyPull(ctx, pull); err != nil {
		return err
	}
	return s.store.SetMetadata(ctx, lastSyncAtKey+s.userID, pull.SyncedAt.UTC().Format(cursorTimeLayout))
}

func (s *Syncer) collectDirty(ctx context.Context) (*syncapi.PushRequest, error) {
	req := &syncapi.PushRequest{}

	bands, err := s.store.DirtyBands(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bands {
		req.Bands = append(req.Bands, b.Band)
	}

	settings, err := s.store.DirtySettings(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range settings {
		req.Settings = append(req.Settings, st.Settings)
	}

	exercises, err := s.store.DirtyExercises(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range exercises {
		req.Exercises = append(req.Exercises, e.Exercise)
	}

	templates, err := s.store.DirtyTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		req.WorkoutTemplates = append(req.WorkoutTemplates, t.WorkoutTemplate)
	}

	links, err := s.store.DirtyTemplateExercises(ctx)
	if err != nil {
		return nil, err
	}
	for _, te := range links {
		req.TemplateExercises = append(req.TemplateExercises, te.TemplateExercise)
	}

	sessions, err := s.store.DirtySessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ws := range sessions {
		req.WorkoutSessions = append(req.WorkoutSessions, ws.WorkoutSession)
	}

	logs, err := s.store.DirtyLoggedExercises(ctx)
	if err != nil {
		return nil, err
	}
	for _, le := range logs {
		req.LoggedExercises = append(req.LoggedExercises, le.LoggedExercise)
	}

	logBands, err := s.store.DirtyLoggedExerciseBands(ctx)
	if err != nil {
		return nil, err
	}
	for _, leb := range logBands {
		req.LoggedExerciseBands = append(req.LoggedExerciseBands, leb.LoggedExerciseBand)
	}

	return req, nil
}

// markSynced stamps exactly the rows that went on the wire. Rows touched
// again while the push was in flight keep their dirty predicate.
func (s *Syncer) markSynced(ctx context.Context, req *syncapi.PushRequest, syncedAt time.Time) error {
	if err := s.store.MarkBandsSynced(ctx, wrapBands(req.Bands), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkSettingsSynced(ctx, wrapSettings(req.Settings), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkExercisesSynced(ctx, wrapExercises(req.Exercises), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkTemplatesSynced(ctx, wrapTemplates(req.WorkoutTemplates), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkTemplateExercisesSynced(ctx, wrapTemplateExercises(req.TemplateExercises), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkSessionsSynced(ctx, wrapSessions(req.WorkoutSessions), syncedAt); err != nil {
		return err
	}
	if err := s.store.MarkLoggedExercisesSynced(ctx, wrapLoggedExercises(req.LoggedExercises), syncedAt); err != nil {
		return err
	}
	return s.store.MarkLoggedExerciseBandsSynced(ctx, wrapLoggedExerciseBands(req.LoggedExerciseBands), syncedAt)
}

func countRows(req *syncapi.PushRequest) int {
	return len(req.Bands) + len(req.Settings) + len(req.Exercises) +
		len(req.WorkoutTemplates) + len(req.TemplateExercises) +
		len(req.WorkoutSessions) + len(req.LoggedExercises) + len(req.LoggedExerciseBands)
}
