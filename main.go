// backend/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/handlers"
	"github.com/stockvaluatorpro/taxdata/backend/notify"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
	"github.com/stockvaluatorpro/taxdata/backend/services"
)

func main() {
	log.Println("Starting Stock Valuator Pro tax data backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment and config file")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "backend/config/config.yaml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/config.yaml"
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Println("No config file found at default paths, using built-in defaults")
			configPath = ""
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	log.Printf("Configuration loaded. Server port: %s, DB path: %s",
		cfg.Server.Port, cfg.Database.Path)
	log.Printf("Source base URL: %s", cfg.Source.BaseURL)

	store, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer store.Close()

	client := scraper.NewClient(cfg.Source)
	dispatcher := notify.NewDispatcher(cfg.Notify)
	backup := services.NewBackupManager(store, cfg.Database.BackupDir)
	checks := services.NewCheckService(cfg, client, store, dispatcher)
	updates := services.NewUpdateService(cfg, client, store, store, backup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := services.NewScheduler(cfg, checks, updates)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Printf("Scheduler stopped with error: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(); err != nil {
			http.Error(w, `{"status": "error", "message": "database connection error"}`, http.StatusInternalServerError)
			log.Printf("Health check failed: DB ping error: %v", err)
			return
		}
		fmt.Fprintln(w, `{"status": "ok", "message": "tax data backend is healthy"}`)
	})

	admin := handlers.NewAdmin(checks, updates)
	admin.Register(mux)

	serverAddr := ":" + cfg.Server.Port
	server := &http.Server{Addr: serverAddr, Handler: mux}

	go func() {
		log.Printf("Server starting on http://localhost%s\n", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Backend stopped.")
}
