package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mzhdanov/bandtrack/internal/client/cli"
	"github.com/mzhdanov/bandtrack/internal/client/config"
	"github.com/mzhdanov/bandtrack/internal/client/seed"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/client/syncer"
	"github.com/mzhdanov/bandtrack/internal/client/workout"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

func main() {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.LoadConfig()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if err := seed.Apply(ctx, st); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	var userID string
	if cfg.Token != "" {
		if userID, err = syncer.UserIDFromToken(cfg.Token); err != nil {
			log.Fatalf("token: %v", err)
		}
	}

	transport := syncer.NewHTTPTransport(cfg.ServerAddr, cfg.Token)
	sync := syncer.New(st, transport, userID, logging.Nop(), syncer.WithDebounce(cfg.SyncDebounce))
	go sync.Watch(ctx, cfg.OnlineCheckInterval)

	svc := workout.NewService(st, sync, logging.Nop())

	a := cli.NewApp(svc, sync, os.Stdin, os.Stdout)
	a.Run(ctx)
}
