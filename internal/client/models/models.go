// Package models defines the client-side records held in the local store.
// Each wraps its wire representation with the local-only SyncedAt marker:
// a nil SyncedAt, or one older than UpdatedAt, means the row is dirty and
// must be pushed on the next sync.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// NewID returns a fresh UUIDv7. Time-sortable, generated client-side so rows
// can be created offline without a server round-trip.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 generation only fails if the entropy source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}

type Band struct {
	syncapi.Band
	SyncedAt *time.Time
}

type Settings struct {
	syncapi.Settings
	SyncedAt *time.Time
}

type Exercise struct {
	syncapi.Exercise
	SyncedAt *time.Time
}

type WorkoutTemplate struct {
	syncapi.WorkoutTemplate
	SyncedAt *time.Time
}

type TemplateExercise struct {
	syncapi.TemplateExercise
	SyncedAt *time.Time
}

type WorkoutSession struct {
	syncapi.WorkoutSession
	SyncedAt *time.Time
}

type LoggedExercise struct {
	syncapi.LoggedExercise
	SyncedAt *time.Time
}

type LoggedExerciseBand struct {
	syncapi.LoggedExerciseBand
	SyncedAt *time.Time
}

// Dirty reports whether the row still needs pushing.
func Dirty(syncedAt *time.Time, updatedAt time.Time) bool {
	return syncedAt == nil || syncedAt.Before(updatedAt)
}
