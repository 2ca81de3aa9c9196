package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/testme/internal/api/http"
	auth "github.com/mind-engage/testme/internal/auth/middleware"
	"github.com/mind-engage/testme/internal/config"
	"github.com/mind-engage/testme/internal/db"
	"github.com/mind-engage/testme/internal/quiz"
	syncx "github.com/mind-engage/testme/internal/sync"
	"github.com/mind-engage/testme/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	store := quiz.NewSQLStore(dbh, driver)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	engine := quiz.NewEngine(store, quiz.WithEvents(events))
	accounts := users.NewStore(dbh)

	if cfg.AdminUser != "" && cfg.AdminPassword != "" {
		bootstrapAdmin(ctx, accounts, cfg)
	}

	sessions := auth.NewSessionService(cfg.SessionSecret, cfg.SessionCookie, cfg.SessionTTL, cfg.CookieSecure)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Mount("/", api.Router(api.Deps{
		DB:          dbh,
		Engine:      engine,
		Catalog:     store,
		Users:       accounts,
		Sessions:    sessions,
		Events:      events,
		PageSize:    cfg.PageSize,
		IndexLatest: cfg.IndexLatestCount,
	}))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, release := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer release()
	go func() {
		<-stop.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// bootstrapAdmin creates the configured superuser once; an existing account is left alone.
func bootstrapAdmin(ctx context.Context, accounts *users.Store, cfg config.Config) {
	_, err := accounts.Create(ctx, users.NewUser{
		Username:    cfg.AdminUser,
		Email:       cfg.AdminEmail,
		Password:    cfg.AdminPassword,
		IsStaff:     true,
		IsSuperuser: true,
	})
	switch {
	case err == nil:
		log.Printf("created admin user %q", cfg.AdminUser)
	case errors.Is(err, users.ErrUsernameUnavailable):
	default:
		log.Printf("bootstrap admin: %v", err)
	}
}
