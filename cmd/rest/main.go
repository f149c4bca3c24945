package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"annotator-be/internal/bootstrap"
	"annotator-be/internal/config"
	"annotator-be/internal/server"
	"annotator-be/internal/tracer"
	"annotator-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 1.5 Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.App.OtlpEndpoint)
	defer shutdownTracer(context.Background())

	// 2. Initialize Database
	dbOpts := database.DefaultOptions()
	dbOpts.Verbose = cfg.App.Environment != "production"
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, dbOpts)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	// 4. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Background: Starting Consumer Service...")
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
