// Command main is the entry point for the Inkwell blog server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/observability"
	"inkwell/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize tracing
	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "inkwell",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.Env == "development",
		SamplerRatio:   1.0,
	})
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
	}

	// Create server with dependency injection
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if shutdownTracing != nil {
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("Tracing shutdown error: %v", err)
			}
		}
		os.Exit(0)
	}()

	log.Fatal(srv.Start())
}
