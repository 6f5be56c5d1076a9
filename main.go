package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gogrid/internal"
	"gogrid/internal/config"
	"gogrid/internal/container"
	"gogrid/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitStorage(ctx); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := appContainer.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	server := ui.NewServer(appContainer.GridService, appContainer.SSEHub, ui.ServerConfig{
		DefaultKey:     appConfig.Grid.DefaultKey,
		MaxUploadBytes: appConfig.Import.MaxUploadBytes,
	}, logger)

	viewer, err := ui.NewApp(appContainer.GridService, ui.Config{
		Port:       appConfig.Viewer.Port,
		DefaultKey: appConfig.Grid.DefaultKey,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize viewer: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx, ":"+appConfig.Server.Port)
	})

	g.Go(func() error {
		logger.Info("starting viewer on http://localhost:%s", appConfig.Viewer.Port)
		return serve(gctx, ":"+appConfig.Viewer.Port, viewer)
	})

	if appContainer.ChangeFeed != nil {
		g.Go(func() error {
			return appContainer.GridService.Watch(gctx, appContainer.ChangeFeed)
		})
	}

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		g.Go(func() error {
			logger.Info("profiling server starting on :%s", appConfig.Profiling.Port)
			logger.Info("view profiles: go tool pprof -http=:8081 http://localhost:%s/debug/pprof/profile?seconds=30", appConfig.Profiling.Port)
			return serve(gctx, ":"+appConfig.Profiling.Port, http.DefaultServeMux)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	logger.Info("shutdown complete")
}

// serve runs handler on addr until ctx is done
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
