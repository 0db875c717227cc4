package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/gluk-w/webterm/internal/auth"
	"github.com/gluk-w/webterm/internal/bridge"
	"github.com/gluk-w/webterm/internal/config"
	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/database"
	"github.com/gluk-w/webterm/internal/handlers"
	"github.com/gluk-w/webterm/internal/logging"
	"github.com/gluk-w/webterm/internal/middleware"
	"github.com/gluk-w/webterm/internal/profile"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--create-admin":
			runCLICommand("create-admin")
			return
		case "--reset-password":
			runCLICommand("reset-password")
			return
		}
	}

	cfg := config.Load()
	logging.Init(cfg.LogPath)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close(db)

	crypt, err := crypto.NewService(cfg.DataPath)
	if err != nil {
		log.Fatalf("Crypto init: %v", err)
	}

	if cfg.SeedFile != "" {
		if owner, err := database.GetFirstAdmin(db); err != nil {
			log.Printf("WARNING: seed import skipped: no admin user (create one with --create-admin)")
		} else if err := database.ImportSeed(db, crypt, cfg.SeedFile, owner.ID); err != nil {
			log.Printf("WARNING: seed import: %v", err)
		}
	}

	profiles := profile.NewStore(db, crypt)
	sessionStore := auth.NewSessionStore(cfg.SessionTTL)
	sessionBridge := bridge.New(bridge.Config{ConnectTimeout: cfg.SSHConnectTimeout})
	h := handlers.New(db, crypt, profiles, sessionStore, sessionBridge, cfg.SSHConnectTimeout)

	// Periodic expired-session sweep
	jobs := cron.New()
	if _, err := jobs.AddFunc("@every 10m", sessionStore.Cleanup); err != nil {
		log.Fatalf("Schedule session cleanup: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/login", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionStore, db, cfg.AuthDisabled))

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.CurrentUser)

			r.Get("/connections", h.ListConnections)
			r.Post("/connections", h.CreateConnection)
			r.Get("/connections/{id}", h.GetConnection)
			r.Put("/connections/{id}", h.UpdateConnection)
			r.Delete("/connections/{id}", h.DeleteConnection)
			r.Post("/connections/{id}/install-key", h.InstallKey)

			r.Post("/keys/generate", h.GenerateKey)
			r.Post("/keys/fingerprint", h.FingerprintKey)

			// Terminal WebSocket
			r.Get("/terminal", h.Terminal)
		})
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func runCLICommand(command string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		fmt.Fprintf(os.Stderr, "Usage: webterm --%s --username <user> --password <pass>\n", command)
		os.Exit(1)
	}

	cfg := config.Load()
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close(db)

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	switch command {
	case "create-admin":
		user := &database.User{
			Username:     *username,
			PasswordHash: hash,
			Role:         "admin",
		}
		if err := database.CreateUser(db, user); err != nil {
			log.Fatalf("Failed to create admin: %v", err)
		}
		fmt.Printf("Admin user '%s' created successfully.\n", *username)

	case "reset-password":
		user, err := database.GetUserByUsername(db, *username)
		if err != nil {
			log.Fatalf("User '%s' not found", *username)
		}
		if err := database.UpdateUserPassword(db, user.ID, hash); err != nil {
			log.Fatalf("Failed to update password: %v", err)
		}
		fmt.Printf("Password reset for '%s'. Existing sessions expire within %s.\n", *username, cfg.SessionTTL)
	}
}
