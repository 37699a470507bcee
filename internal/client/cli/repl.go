package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Bands(ctx context.Context) error
	AddBand(ctx context.Context) error
	DeleteBand(ctx context.Context) error
	Exercises(ctx context.Context) error
	AddExercise(ctx context.Context) error
	Templates(ctx context.Context) error
	StartSession(ctx context.Context) error
	LogExercise(ctx context.Context) error
	EndSession(ctx context.Context) error
	Sessions(ctx context.Context) error
	Settings(ctx context.Context) error
	Sync(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the BandTrack CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	help           — show available commands
//	bands | b      — list resistance bands
//	add-band       — add a band
//	del-band       — delete a band
//	exercises | e  — list exercises
//	add-ex         — add an exercise
//	templates | t  — list workout templates
//	start          — start a session (optionally from a template)
//	log            — log a set in a session
//	end            — finish a session
//	sessions       — list past sessions
//	settings       — show and edit settings
//	sync           — synchronize with the server
//	exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// report their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("bt> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn("Available commands: (b)ands, add-band, del-band, (e)xercises, add-ex, (t)emplates, start, log, end, sessions, settings, sync, exit")

		case "b", "bands":
			_ = a.Bands(ctx)

		case "add-band":
			_ = a.AddBand(ctx)

		case "del-band":
			_ = a.DeleteBand(ctx)

		case "e", "exercises":
			_ = a.Exercises(ctx)

		case "add-ex":
			_ = a.AddExercise(ctx)

		case "t", "templates":
			_ = a.Templates(ctx)

		case "start":
			_ = a.StartSession(ctx)

		case "log":
			_ = a.LogExercise(ctx)

		case "end":
			_ = a.EndSession(ctx)

		case "sessions":
			_ = a.Sessions(ctx)

		case "settings":
			_ = a.Settings(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
