// Package syncapi defines the wire types of the push/pull sync protocol.
// Dates travel as ISO-8601 strings (time.Time JSON encoding); the tenant id
// never appears on the wire — the server scopes rows by the authenticated user.
package syncapi

import "time"

// Band is a resistance band, optionally a seeded catalog row (SeedSlug set).
type Band struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Resistance float64    `json:"resistance"`
	Color      *string    `json:"color"`
	SeedSlug   *string    `json:"seedSlug"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
}

// Settings is the per-profile singleton, fixed id "global".
type Settings struct {
	ID              string    `json:"id"`
	WeightUnit      string    `json:"weightUnit"`
	KeepScreenAwake bool      `json:"keepScreenAwake"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Exercise struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	SeedSlug  *string    `json:"seedSlug"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

type WorkoutTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SeedSlug  *string   `json:"seedSlug"`
	Icon      *string   `json:"icon"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TemplateExercise links an exercise into a template. Append-only: created
// with the template, never independently edited afterwards.
type TemplateExercise struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"templateId"`
	ExerciseID string  `json:"exerciseId"`
	SeedSlug   *string `json:"seedSlug"`
	SortOrder  int     `json:"sortOrder"`
}

type WorkoutSession struct {
	ID               string     `json:"id"`
	TemplateID       *string    `json:"templateId"`
	StartedAt        time.Time  `json:"startedAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	EndedAt          *time.Time `json:"endedAt"`
	Notes            *string    `json:"notes"`
	PlannedExercises []string   `json:"plannedExercises"`
}

type LoggedExercise struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	ExerciseID  string    `json:"exerciseId"`
	FullReps    int       `json:"fullReps"`
	PartialReps int       `json:"partialReps"`
	Notes       *string   `json:"notes"`
	LoggedAt    time.Time `json:"loggedAt"`
}

type LoggedExerciseBand struct {
	ID               string `json:"id"`
	LoggedExerciseID string `json:"loggedExerciseId"`
	BandID           string `json:"bandId"`
}

// PushRequest carries every locally dirty row, one optional slice per table.
type PushRequest struct {
	Bands               []Band               `json:"bands,omitempty"`
	Settings            []Settings           `json:"settings,omitempty"`
	Exercises           []Exercise           `json:"exercises,omitempty"`
	WorkoutTemplates    []WorkoutTemplate    `json:"workoutTemplates,omitempty"`
	TemplateExercises   []TemplateExercise   `json:"workoutTemplateExercises,omitempty"`
	WorkoutSessions     []WorkoutSession     `json:"workoutSessions,omitempty"`
	LoggedExercises     []LoggedExercise     `json:"loggedExercises,omitempty"`
	LoggedExerciseBands []LoggedExerciseBand `json:"loggedExerciseBands,omitempty"`
}

// Empty reports whether there is nothing to push.
func (r *PushRequest) Empty() bool {
	return len(r.Bands) == 0 && len(r.Settings) == 0 && len(r.Exercises) == 0 &&
		len(r.WorkoutTemplates) == 0 && len(r.TemplateExercises) == 0 &&
		len(r.WorkoutSessions) == 0 && len(r.LoggedExercises) == 0 &&
		len(r.LoggedExerciseBands) == 0
}

type PushResponse struct {
	SyncedAt time.Time `json:"syncedAt"`
}

// PullResponse is the caller's current server-side state. Tables that cannot
// be filtered incrementally (junctions, logs, settings) always come complete;
// the rest is filtered by updatedAt > lastSyncAt when a cursor was sent.
type PullResponse struct {
	Bands               []Band               `json:"bands"`
	Settings            []Settings           `json:"settings"`
	Exercises           []Exercise           `json:"exercises"`
	WorkoutTemplates    []WorkoutTemplate    `json:"workoutTemplates"`
	TemplateExercises   []TemplateExercise   `json:"workoutTemplateExercises"`
	WorkoutSessions     []WorkoutSession     `json:"workoutSessions"`
	LoggedExercises     []LoggedExercise     `json:"loggedExercises"`
	LoggedExerciseBands []LoggedExerciseBand `json:"loggedExerciseBands"`
	SyncedAt            time.Time            `json:"syncedAt"`
}
