package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/gitfav/internal/config"
	"github.com/example/gitfav/internal/logger"
	"github.com/example/gitfav/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type App struct {
	DB             DB
	Favorites      FavoritesStore
	Auth           *AuthService
	Tokens         *TokenIssuer
	Log            *zap.Logger
	Metrics        *metrics.Collector
	AllowedOrigins []string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// Router wires every route. metricsHandler may be nil.
func (a *App) Router(metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	// Instrument and Logging sit outside Recovery so a panic still shows up
	// as a 500 in metrics and the access log.
	r.Use(a.Instrument)
	r.Use(a.Logging)
	r.Use(a.Recovery)
	r.Use(SecurityHeaders)
	r.Use(a.CORS)

	r.HandleFunc("/", a.HandleRoot).Methods("GET")
	r.HandleFunc("/health", a.HandleHealth).Methods("GET")
	r.HandleFunc("/ready", a.HandleReady).Methods("GET")
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// OPTIONS is listed so CORS preflights reach the middleware chain
	users := r.PathPrefix("/users").Subrouter()
	users.HandleFunc("/login", a.HandleLogin).Methods("POST", "OPTIONS")
	users.HandleFunc("/registerUser", a.HandleRegister).Methods("POST", "OPTIONS")
	users.HandleFunc("/register", a.HandleRegister).Methods("POST", "OPTIONS")

	users.Handle("/favoriteRepo", a.RequireToken(http.HandlerFunc(a.HandleFavoriteRepo))).Methods("POST", "OPTIONS")
	users.Handle("/favorites", a.RequireToken(http.HandlerFunc(a.HandleFavorites))).Methods("GET", "OPTIONS")
	users.Handle("/me", a.RequireToken(http.HandlerFunc(a.HandleMe))).Methods("GET", "OPTIONS")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		logger.New("info", "").Fatal("config", zap.Error(err))
	}
	env := c.Env
	if env == "" {
		env = c.NodeEnv
	}
	log := logger.New(c.LogLevel, env)
	defer log.Sync()

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatal("sqlite init", zap.Error(err))
		}
		db = s
	case "postgres":
		log.Info("applying database migrations", zap.String("dir", c.MigrationsDir))
		if err := ApplyMigrations(log, c.MigrationsDir, c.PostgresDSN); err != nil {
			log.Warn("migration error (continuing anyway)", zap.Error(err))
		}

		p, err := NewPostgresDB(c.PostgresDSN)
		if err != nil {
			log.Fatal("postgres init", zap.Error(err))
		}
		db = p
		log.Info("connected to PostgreSQL database")
	case "memory":
		log.Warn("using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	}

	var (
		provider  IdentityProvider
		directory UserDirectory
	)
	switch c.IdentityProvider {
	case "supabase":
		sp := NewSupabaseIdentityProvider(c.SupabaseURL, c.SupabaseKey, nil)
		provider, directory = sp, sp
	default:
		lp := NewLocalIdentityProvider(db)
		provider, directory = lp, lp
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tokens := NewTokenIssuer([]byte(c.JwtSecret))
	app := &App{
		DB:        db,
		Favorites: db,
		Tokens:    tokens,
		Auth: &AuthService{
			Provider: provider,
			Resolver: &CredentialResolver{Directory: directory},
			Tokens:   tokens,
			Log:      log.Named("auth"),
		},
		Log:            log,
		Metrics:        metrics.NewCollector(reg),
		AllowedOrigins: c.CORSAllowedOrigins,
	}

	srv := &http.Server{
		Handler:      app.Router(metrics.Handler(reg)),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server",
			zap.String("port", c.Port),
			zap.String("db_adapter", c.DBAdapter),
			zap.String("identity_provider", c.IdentityProvider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("shutdown failed", zap.Error(err))
	}
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	log.Info("server exited properly")
}
