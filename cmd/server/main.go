package main

import (
	"context"
	"log"

	"github.com/zoneup/zoneup/internal/server"
	"github.com/zoneup/zoneup/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := app.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
