package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/logicbot/backend/internal/auth"
	"github.com/logicbot/backend/internal/conversation"
	"github.com/logicbot/backend/internal/dashboard"
	"github.com/logicbot/backend/internal/database"
	"github.com/logicbot/backend/internal/evaluator"
	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/generator"
	"github.com/logicbot/backend/internal/integrity"
	"github.com/logicbot/backend/internal/middleware"
	"github.com/logicbot/backend/internal/progress"
	"github.com/logicbot/backend/internal/whatsapp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Event bus with the fire-and-forget sinks
	bus := events.NewBus()
	defer bus.Close()

	alertStore := integrity.NewAlertStore(db)
	bus.Subscribe(func(e events.Event) {
		if s, ok := e.(events.SuspiciousSubmission); ok {
			if err := alertStore.Insert(s.Alert); err != nil {
				log.Printf("[main] security alert write: %v", err)
			}
		}
	})

	mirror := dashboard.NewMirror(db)
	bus.Subscribe(mirror.HandleEvent)

	// Conversation machine and its collaborators
	gen := generator.NewGenerator()
	log.Printf("Using LLM model: %s", gen.ModelName())

	machine := conversation.NewMachine(conversation.Deps{
		Store:     progress.NewStore(db),
		Generator: gen,
		Grader:    evaluator.New(gen.Client()),
		Sender:    whatsapp.NewClient(),
		Bus:       bus,
	}, conversation.ConfigFromEnv())

	// Initialize handlers
	authHandler := auth.NewHandler(db)
	dashboardHandler := dashboard.NewHandler(db, alertStore)

	// Setup router
	r := mux.NewRouter()

	// WhatsApp webhook
	r.HandleFunc("/webhook", whatsapp.VerifyHandshake).Methods("GET")
	r.HandleFunc("/webhook", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		if msg, ok := whatsapp.ParseWebhook(body); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			machine.HandleIncoming(ctx, msg)
		}
		// Always ack so the platform does not retry and double-deliver.
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentReviewer).Methods("GET")
	protected.HandleFunc("/students", dashboardHandler.Students).Methods("GET")
	protected.HandleFunc("/alerts", dashboardHandler.Alerts).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: c.Handler(r),
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
