package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"reelparty/api"
	"reelparty/config"
	"reelparty/handlers"
	"reelparty/internal/database"
	"reelparty/services/accounts"
	"reelparty/services/groups"
	"reelparty/services/invitations"
	"reelparty/services/metadata"
	"reelparty/services/queue"
	"reelparty/services/ratings"
	"reelparty/services/sessions"
	"reelparty/services/shortlist"
	"reelparty/utils"
)

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("[main] failed to create data directory: %v", err)
	}

	// Mirror logs to a rotated file alongside stdout.
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   filepath.Join(cfg.DataDir, "logs", "reelparty.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}))

	if cfg.TMDBAPIKey == "" {
		log.Printf("[main] WARNING: REELPARTY_TMDB_API_KEY is not set; discovery and search will fail")
	}

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(cfg.DataDir, "reelparty.db"),
	})
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	accountsSvc, err := accounts.NewService(cfg.DataDir)
	if err != nil {
		log.Fatalf("[main] failed to initialize accounts service: %v", err)
	}
	if accountsSvc.HasDefaultPassword() {
		log.Printf("[main] WARNING: admin account still uses the default password")
	}

	sessionsSvc, err := sessions.NewService(cfg.DataDir, cfg.SessionDuration)
	if err != nil {
		log.Fatalf("[main] failed to initialize sessions service: %v", err)
	}

	invitationsSvc, err := invitations.NewService(cfg.DataDir)
	if err != nil {
		log.Fatalf("[main] failed to initialize invitations service: %v", err)
	}
	if removed, err := invitationsSvc.CleanupExpired(7 * 24 * time.Hour); err != nil {
		log.Printf("[main] invitation cleanup failed: %v", err)
	} else if removed > 0 {
		log.Printf("[main] removed %d expired invitations", removed)
	}

	shortlistSvc, err := shortlist.NewService(filepath.Join(cfg.DataDir, "shortlists"))
	if err != nil {
		log.Fatalf("[main] failed to initialize shortlist service: %v", err)
	}

	groupsSvc := groups.NewService(db.Repository)
	ratingsSvc := ratings.NewService(db.Repository)

	metadataSvc := metadata.NewService(cfg.TMDBAPIKey, cfg.Language, filepath.Join(cfg.DataDir, "metadata_cache"), cfg.CacheTTLHours)

	queueStore, err := queue.NewStore(nil, filepath.Join(cfg.DataDir, "queues"), cfg.DevMode)
	if err != nil {
		log.Fatalf("[main] failed to initialize queue store: %v", err)
	}
	queueSvc := queue.NewService(queueStore, metadataSvc, ratingsSvc, cfg.DevMode)

	authHandler := handlers.NewAuthHandler(accountsSvc, sessionsSvc)
	groupsHandler := handlers.NewGroupsHandler(groupsSvc, invitationsSvc)
	queueHandler := handlers.NewQueueHandler(queueSvc, groupsSvc)
	ratingsHandler := handlers.NewRatingsHandler(ratingsSvc, groupsSvc, queueSvc)
	shortlistHandler := handlers.NewShortlistHandler(shortlistSvc, groupsSvc)
	metadataHandler := handlers.NewMetadataHandler(metadataSvc)
	accountsHandler := handlers.NewAccountsHandler(accountsSvc, sessionsSvc)

	router := utils.NewRouter()

	// Login and registration are the only unauthenticated endpoints, so they
	// get per-IP rate limiting.
	authLimiter := api.NewIPRateLimiter(rate.Every(time.Second), 5)
	router.HandleFunc("/api/auth/login", api.RateLimitHandlerFunc(authLimiter, authHandler.Login)).Methods("POST")
	router.HandleFunc("/api/auth/register", api.RateLimitHandlerFunc(authLimiter, authHandler.Register)).Methods("POST")

	// Preflight requests never match the method-restricted routes above, so
	// route them all to one permissive handler (CORS headers come from the
	// router middleware).
	router.PathPrefix("/api/").HandlerFunc(authHandler.Options).Methods("OPTIONS")

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(api.AccountAuthMiddleware(sessionsSvc))

	authed.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	authed.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	authed.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST")
	authed.HandleFunc("/auth/password", authHandler.ChangePassword).Methods("POST")

	authed.HandleFunc("/groups", groupsHandler.Create).Methods("POST")
	authed.HandleFunc("/groups", groupsHandler.List).Methods("GET")
	authed.HandleFunc("/groups/join", groupsHandler.Join).Methods("POST")
	authed.HandleFunc("/search", metadataHandler.Search).Methods("GET")

	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(api.AdminOnlyMiddleware())
	admin.HandleFunc("/accounts", accountsHandler.List).Methods("GET")
	admin.HandleFunc("/accounts/{accountID}", accountsHandler.Get).Methods("GET")
	admin.HandleFunc("/accounts/{accountID}", accountsHandler.Rename).Methods("PUT")
	admin.HandleFunc("/accounts/{accountID}", accountsHandler.Delete).Methods("DELETE")

	// Everything below is scoped to a single group and requires membership.
	group := authed.PathPrefix("/groups/{groupID}").Subrouter()
	group.Use(api.GroupMemberMiddleware(groupsSvc))

	group.HandleFunc("", groupsHandler.Get).Methods("GET")
	group.HandleFunc("", groupsHandler.Delete).Methods("DELETE")
	group.HandleFunc("/policy", groupsHandler.UpdatePolicy).Methods("PUT")
	group.HandleFunc("/members", groupsHandler.Members).Methods("GET")
	group.HandleFunc("/invitations", groupsHandler.CreateInvitation).Methods("POST")
	group.HandleFunc("/invitations", groupsHandler.ListInvitations).Methods("GET")

	group.HandleFunc("/queue", queueHandler.Get).Methods("GET")
	group.HandleFunc("/queue/peek", queueHandler.Peek).Methods("GET")
	group.HandleFunc("/queue/skip", queueHandler.Skip).Methods("POST")

	group.HandleFunc("/ratings", ratingsHandler.Rate).Methods("POST")
	group.HandleFunc("/ratings/mine", ratingsHandler.Mine).Methods("GET")
	group.HandleFunc("/results", ratingsHandler.Results).Methods("GET")

	group.HandleFunc("/shortlist", shortlistHandler.Add).Methods("POST")
	group.HandleFunc("/shortlist", shortlistHandler.List).Methods("GET")
	group.HandleFunc("/shortlist/{titleID}", shortlistHandler.Remove).Methods("DELETE")

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}
