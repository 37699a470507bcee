package syncer

import (
	"github.com/mzhdanov/bandtrack/internal/client/models"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// The store mark-synced calls take local records; pushed rows travel as wire
// structs. These wrappers re-attach the local envelope without copying field
// by field.

func wrapBands(in []syncapi.Band) []models.Band {
	out := make([]models.Band, len(in))
	for i, v := range in {
		out[i].Band = v
	}
	return out
}

func wrapSettings(in []syncapi.Settings) []models.Settings {
	out := make([]models.Settings, len(in))
	for i, v := range in {
		out[i].Settings = v
	}
	return out
}

func wrapExercises(in []syncapi.Exercise) []models.Exercise {
	out := make([]models.Exercise, len(in))
	for i, v := range in {
		out[i].Exercise = v
	}
	return out
}

func wrapTemplates(in []syncapi.WorkoutTemplate) []models.WorkoutTemplate {
	out := make([]models.WorkoutTemplate, len(in))
	for i, v := range in {
		out[i].WorkoutTemplate = v
	}
	return out
}

func wrapTemplateExercises(in []syncapi.TemplateExercise) []models.TemplateExercise {
	out := make([]models.TemplateExercise, len(in))
	for i, v := range in {
		out[i].TemplateExercise = v
	}
	return out
}

func wrapSessions(in []syncapi.WorkoutSession) []models.WorkoutSession {
	out := make([]models.WorkoutSession, len(in))
	for i, v := range in {
		out[i].WorkoutSession = v
	}
	return out
}

func wrapLoggedExercises(in []syncapi.LoggedExercise) []models.LoggedExercise {
	out := make([]models.LoggedExercise, len(in))
	for i, v := range in {
		out[i].LoggedExercise = v
	}
	return out
}

func wrapLoggedExerciseBands(in []syncapi.LoggedExerciseBand) []models.LoggedExerciseBand {
	out := make([]models.LoggedExerciseBand, len(in))
	for i, v := range in {
		out[i].LoggedExerciseBand = v
	}
	return out
}
