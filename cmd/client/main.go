package main

import (
	"context"
	"log"

	"github.com/mzhdanov/bandtrack/internal/client/app"
	"github.com/mzhdanov/bandtrack/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	a.Run(ctx)

}
