package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ocupmed/platform/internal/adapters/legacy"
	"github.com/ocupmed/platform/internal/appointment"
	"github.com/ocupmed/platform/internal/audit"
	"github.com/ocupmed/platform/internal/consultation"
	"github.com/ocupmed/platform/internal/patient"
	"github.com/ocupmed/platform/internal/shared/auth"
	"github.com/ocupmed/platform/internal/shared/config"
	"github.com/ocupmed/platform/internal/shared/database"
	"github.com/ocupmed/platform/internal/shared/events"
	"github.com/ocupmed/platform/internal/shared/metrics"
	secmiddleware "github.com/ocupmed/platform/internal/shared/middleware"
	"github.com/ocupmed/platform/internal/workflow"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without database...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus with EventStoreDB (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("EventStoreDB Event Bus initialized")
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(100, 200))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		} else {
			// Development runs without tokens; handlers still need an
			// acting doctor, so inject a fixed admin identity.
			r.Use(auth.DevMiddleware())
		}

		if app.DB != nil {
			patientRepo := patient.NewRepository(app.DB.Pool)
			consultationRepo := consultation.NewRepository(app.DB.Pool)
			appointmentRepo := appointment.NewRepository(app.DB.Pool)

			var busIface events.EventBus
			if app.Bus != nil {
				busIface = app.Bus
			}

			// Patient module
			patientHandler := patient.NewHandler(patientRepo)
			r.Mount("/patients", patientHandler.Routes())

			// Workflow facade: consultations, appointments, deletion previews
			workflowService := workflow.NewService(patientRepo, consultationRepo, appointmentRepo, busIface)
			workflowHandler := workflow.NewHandler(workflowService)
			r.Mount("/", workflowHandler.Routes())

			// Audit module - append-only hash-chained log fed by the bus
			if app.Bus != nil {
				auditRepo := audit.NewRepository(app.DB.Pool)
				if err := auditRepo.Initialize(ctx); err != nil {
					fmt.Printf("Warning: Audit initialization failed: %v\n", err)
				}
				auditHandler := audit.NewHandler(auditRepo)
				r.Mount("/audit", auditHandler.Routes())

				auditSubscriber := audit.NewSubscriber(auditRepo, app.Bus)
				if err := auditSubscriber.Start(ctx); err != nil {
					fmt.Printf("Warning: Audit subscriber failed to start: %v\n", err)
				} else {
					fmt.Println("Audit subscriber started")
				}
			}

			// One-shot legacy import on startup when enabled
			if cfg.Legacy.Enabled {
				importer := legacy.NewImporter(cfg.Legacy, patientRepo, consultationRepo)
				if err := importer.Open(ctx); err != nil {
					fmt.Printf("Warning: Legacy import skipped: %v\n", err)
				} else {
					defer importer.Close()
					if _, err := importer.Run(ctx); err != nil {
						fmt.Printf("Warning: Legacy import failed: %v\n", err)
					}
				}
			}
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("OcupMed Occupational Health Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:   %s\n", cfg.Server.Env)
	fmt.Printf("Server:        http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:           http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:        http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("EventStore:    %s:%d\n", cfg.EventStore.Host, cfg.EventStore.Port)
	fmt.Printf("Legacy import: %v\n", cfg.Legacy.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "OcupMed Occupational Health Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-Acting-Doctor")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
