package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/voyago/tripsync/internal/cli"
	"github.com/voyago/tripsync/internal/config"
	"github.com/voyago/tripsync/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)
}
