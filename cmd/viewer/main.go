package main

import (
	"context"
	"log"

	"gogrid/internal"
	"gogrid/internal/config"
	"gogrid/internal/container"
	"gogrid/ui"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer c.Shutdown(ctx)

	if err := c.InitStorage(ctx); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := c.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Follow writes made by API instances so pages stay current
	if c.ChangeFeed != nil {
		go func() {
			if err := c.GridService.Watch(ctx, c.ChangeFeed); err != nil {
				logger.Error("change feed stopped: %v", err)
			}
		}()
	}

	app, err := ui.NewApp(c.GridService, ui.Config{
		Port:       appConfig.Viewer.Port,
		DefaultKey: appConfig.Grid.DefaultKey,
	}, logger)
	if err != nil {
		log.Fatal("Failed to create viewer:", err)
	}

	log.Fatal(app.Start(appConfig.Viewer.Port))
}
