package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mzhdanov/bandtrack/internal/client/syncer"
	"github.com/mzhdanov/bandtrack/internal/client/workout"
)

// syncControl is the slice of the sync engine the CLI needs. The real
// *syncer.Syncer satisfies it; tests can provide a stub.
type syncControl interface {
	State() syncer.State
	ManualSync(ctx context.Context) error
}

// App binds the workout service and the sync engine to an interactive
// terminal session.
type App struct {
	workout *workout.Service
	sync    syncControl
	scanner *bufio.Scanner
	out     io.Writer
}

func NewApp(w *workout.Service, sync syncControl, in io.Reader, out io.Writer) *App {
	return &App{
		workout: w,
		sync:    sync,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (a *App) status() string {
	st := a.sync.State()
	s := "offline"
	if st.Online {
		s = "online"
	}
	if st.Syncing {
		s += ", syncing"
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to BandTrack CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.scanner)
}

func (a *App) fail(err error) error {
	printlnFn(err.Error())
	return err
}

func fmtOpt(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func (a *App) Bands(ctx context.Context) error {
	bands, err := a.workout.Bands(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, b := range bands {
		printlnFn(fmt.Sprintf("%s  %-20s %6.1f  %s", b.ID, b.Name, b.Resistance, fmtOpt(b.Color)))
	}
	return nil
}

func (a *App) AddBand(ctx context.Context) error {
	name, err := GetSimpleText(a.scanner, "Band name:", a.out)
	if err != nil {
		return a.fail(err)
	}
	res, err := GetSimpleText(a.scanner, "Resistance:", a.out)
	if err != nil {
		return a.fail(err)
	}
	resistance, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return a.fail(fmt.Errorf("resistance must be a number: %w", err))
	}
	colorStr, err := GetSimpleText(a.scanner, "Color (optional):", a.out)
	if err != nil {
		return a.fail(err)
	}
	var color *string
	if colorStr != "" {
		color = &colorStr
	}
	if err := a.workout.AddBand(ctx, name, resistance, color); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) DeleteBand(ctx context.Context) error {
	id, err := GetSimpleText(a.scanner, "Band id:", a.out)
	if err != nil {
		return a.fail(err)
	}
	if err := a.workout.DeleteBand(ctx, id); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) Exercises(ctx context.Context) error {
	exercises, err := a.workout.Exercises(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, e := range exercises {
		printlnFn(fmt.Sprintf("%s  %s", e.ID, e.Name))
	}
	return nil
}

func (a *App) AddExercise(ctx context.Context) error {
	name, err := GetSimpleText(a.scanner, "Exercise name:", a.out)
	if err != nil {
		return a.fail(err)
	}
	if _, err := a.workout.AddExercise(ctx, name); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) Templates(ctx context.Context) error {
	templates, err := a.workout.Templates(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, t := range templates {
		names := make([]string, 0, len(t.Exercises))
		for _, e := range t.Exercises {
			names = append(names, e.Name)
		}
		printlnFn(fmt.Sprintf("%s  %-20s %s", t.ID, t.Name, strings.Join(names, ", ")))
	}
	return nil
}

func (a *App) StartSession(ctx context.Context) error {
	idStr, err := GetSimpleText(a.scanner, "Template id (Enter for freeform):", a.out)
	if err != nil {
		return a.fail(err)
	}
	var templateID *string
	if idStr != "" {
		templateID = &idStr
	}
	ws, err := a.workout.StartSession(ctx, templateID)
	if err != nil {
		return a.fail(err)
	}
	printlnFn("Started session", ws.ID)
	return nil
}

func (a *App) LogExercise(ctx context.Context) error {
	sessionID, err := GetSimpleText(a.scanner, "Session id:", a.out)
	if err != nil {
		return a.fail(err)
	}
	exerciseID, err := GetSimpleText(a.scanner, "Exercise id:", a.out)
	if err != nil {
		return a.fail(err)
	}
	bandsStr, err := GetSimpleText(a.scanner, "Band ids (comma separated, optional):", a.out)
	if err != nil {
		return a.fail(err)
	}
	var bandIDs []string
	for _, id := range strings.Split(bandsStr, ",") {
		if id = strings.TrimSpace(id); id != "" {
			bandIDs = append(bandIDs, id)
		}
	}
	fullStr, err := GetSimpleText(a.scanner, "Full reps:", a.out)
	if err != nil {
		return a.fail(err)
	}
	fullReps, err := strconv.Atoi(fullStr)
	if err != nil {
		return a.fail(fmt.Errorf("full reps must be an integer: %w", err))
	}
	partialStr, err := GetSimpleText(a.scanner, "Partial reps (Enter for 0):", a.out)
	if err != nil {
		return a.fail(err)
	}
	partialReps := 0
	if partialStr != "" {
		if partialReps, err = strconv.Atoi(partialStr); err != nil {
			return a.fail(fmt.Errorf("partial reps must be an integer: %w", err))
		}
	}
	noteStr, err := GetSimpleText(a.scanner, "Notes (optional):", a.out)
	if err != nil {
		return a.fail(err)
	}
	var notes *string
	if noteStr != "" {
		notes = &noteStr
	}
	if _, err := a.workout.LogExercise(ctx, sessionID, exerciseID, bandIDs, fullReps, partialReps, notes); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) EndSession(ctx context.Context) error {
	sessionID, err := GetSimpleText(a.scanner, "Session id:", a.out)
	if err != nil {
		return a.fail(err)
	}
	noteStr, err := GetMultiline(a.scanner, "Session notes:", a.out)
	if err != nil {
		return a.fail(err)
	}
	var notes *string
	if noteStr != "" {
		notes = &noteStr
	}
	if err := a.workout.EndSession(ctx, sessionID, notes); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) Sessions(ctx context.Context) error {
	sessions, err := a.workout.Sessions(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, ws := range sessions {
		ended := "in progress"
		if ws.EndedAt != nil {
			ended = ws.EndedAt.Format("2006-01-02 15:04")
		}
		printlnFn(fmt.Sprintf("%s  started %s  %s", ws.ID, ws.StartedAt.Format("2006-01-02 15:04"), ended))
	}
	return nil
}

func (a *App) Settings(ctx context.Context) error {
	s, err := a.workout.Settings(ctx)
	if err != nil {
		return a.fail(err)
	}
	printlnFn(fmt.Sprintf("weight unit: %s, keep screen awake: %t", s.WeightUnit, s.KeepScreenAwake))
	unit, err := GetSimpleText(a.scanner, "New weight unit kg/lbs (Enter to keep):", a.out)
	if err != nil {
		return a.fail(err)
	}
	if unit == "" {
		return nil
	}
	if unit != "kg" && unit != "lbs" {
		return a.fail(fmt.Errorf("unknown weight unit %q", unit))
	}
	awakeStr, err := GetSimpleText(a.scanner, "Keep screen awake y/n:", a.out)
	if err != nil {
		return a.fail(err)
	}
	if err := a.workout.UpdateSettings(ctx, unit, awakeStr == "y"); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.sync.ManualSync(ctx); err != nil {
		return a.fail(err)
	}
	if at := a.sync.State().LastSyncAt; at != nil {
		printlnFn("Synced at", at.Format("2006-01-02 15:04:05"))
	}
	return nil
}
