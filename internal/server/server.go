// Package server wires dependencies and routes and runs the HTTP server.
//
// This is the composition root: config goes in, and New builds
//
//	sqlite.DB → services → handlers → chi routes
//
// in one place. Each layer only receives what it needs: services get
// repository interfaces, handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/config"
	"github.com/sakif/blog/internal/handler"
	"github.com/sakif/blog/internal/middleware"
	sqliteRepo "github.com/sakif/blog/internal/repository/sqlite"
	"github.com/sakif/blog/internal/service"
	"github.com/sakif/blog/internal/storage"
)

// uploadOverhead is the room left in a request body for form fields and
// multipart framing on top of the file itself.
const uploadOverhead = 1 << 20

// Server owns the router and every long-lived resource. Start closes them
// on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client // nil when rate limiting is off
	media  *storage.DiskStore
}

// New opens the database and attachment store and builds the router.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes builds the dependency graph and mounts every route.
//
// ROUTES:
//
//	GET    /                      list posts (?page=N|last)
//	GET    /about                 about page
//	GET    /user/{username}       posts by one author
//	GET    /post/{id}             post detail
//	POST   /post/new              create post            [auth]
//	PUT    /post/{id}/update      update post            [auth, owner]
//	DELETE /post/{id}/delete      delete post            [auth, owner]
//	POST   /register              sign up                [rate limited]
//	POST   /login                 password login         [rate limited]
//	POST   /logout                clear the session
//	GET    /profile               own profile            [auth]
//	POST   /profile               update profile         [auth]
//	GET    /handouts              list handouts
//	GET    /handouts/{id}         one handout
//	POST   /handouts/upload       upload a PDF           [auth]
//	GET    /auth/github/*         GitHub sign-in (when configured)
//	GET    /media/*               disk attachments (disk storage only)
//	GET    /healthz               liveness
//
// MIDDLEWARE ORDER:
// RequestID, then RealIP (the rate limiter keys on it), then Recoverer,
// then request logging.
func (s *Server) setupRoutes() error {
	cfg := s.config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Dependencies ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	store, err := s.openStore()
	if err != nil {
		return err
	}

	postService := service.NewPostService(s.db, s.db, s.logger)
	accountService := service.NewAccountService(s.db, s.db, passwords, store, cfg.MaxImageBytes, s.logger)
	handoutService := service.NewHandoutService(s.db, s.db, store, cfg.MaxUploadBytes, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	postHandler := handler.NewPostHandler(postService, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	handoutHandler := handler.NewHandoutHandler(handoutService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), cfg.SecureCookie, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	loginLimit, signupLimit, err := s.rateLimits()
	if err != nil {
		return err
	}

	// === Routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)

	if s.media != nil {
		files := http.FileServer(filesOnly{http.Dir(s.media.BasePath())})
		s.router.Handle("/media/*", http.StripPrefix("/media/", files))
	}

	// Public pages: the requester is identified when a cookie is present.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/", postHandler.HandleList)
		r.Get("/about", postHandler.HandleAbout)
		r.Get("/user/{username}", postHandler.HandleListByUser)
		r.Get("/post/{id}", postHandler.HandleGet)
		r.Get("/handouts", handoutHandler.HandleList)
		r.Get("/handouts/{id}", handoutHandler.HandleGet)

		r.With(signupLimit).Post("/register", accountHandler.HandleRegister)
		r.With(loginLimit).Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		if github != nil {
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// Everything that writes needs a session.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Post("/post/new", postHandler.HandleCreate)
		r.Put("/post/{id}/update", postHandler.HandleUpdate)
		r.Post("/post/{id}/update", postHandler.HandleUpdate)
		r.Delete("/post/{id}/delete", postHandler.HandleDelete)
		r.Post("/post/{id}/delete", postHandler.HandleDelete)

		r.Get("/profile", accountHandler.HandleProfile)
		r.With(limitBody(cfg.MaxUploadBytes+uploadOverhead)).Post("/profile", accountHandler.HandleUpdateProfile)
		r.With(limitBody(cfg.MaxUploadBytes+uploadOverhead)).Post("/handouts/upload", handoutHandler.HandleUpload)
	})

	return nil
}

// openStore picks MinIO when an endpoint is configured and local disk
// otherwise.
func (s *Server) openStore() (storage.Store, error) {
	cfg := s.config
	if cfg.UseMinio() {
		store, err := storage.NewMinioStore(context.Background(), storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("opening object storage: %w", err)
		}
		s.logger.Info("attachments in object storage",
			slog.String("endpoint", cfg.MinioEndpoint),
			slog.String("bucket", cfg.MinioBucket),
		)
		return store, nil
	}

	disk, err := storage.NewDiskStore(cfg.MediaDir, "/media")
	if err != nil {
		return nil, fmt.Errorf("opening media directory: %w", err)
	}
	s.media = disk
	s.logger.Info("attachments on local disk", slog.String("dir", disk.BasePath()))
	return disk, nil
}

// rateLimits returns the middleware for /login and /register. Without a
// Redis address, or with a zero limit, the middleware passes everything.
func (s *Server) rateLimits() (login, signup func(http.Handler) http.Handler, err error) {
	cfg := s.config
	passthrough := func(next http.Handler) http.Handler { return next }
	if cfg.RedisAddr == "" {
		return passthrough, passthrough, nil
	}

	s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	build := func(scope string, perMinute int) (func(http.Handler) http.Handler, error) {
		if perMinute == 0 {
			return passthrough, nil
		}
		limiter, err := middleware.NewFixedWindowLimiter(s.redis, "blog:ratelimit", perMinute, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("creating %s rate limiter: %w", scope, err)
		}
		return middleware.RateLimit(limiter, scope, s.logger), nil
	}

	if login, err = build("login", cfg.LoginRateLimitPerMin); err != nil {
		return nil, nil, err
	}
	if signup, err = build("register", cfg.SignupRateLimitPerMin); err != nil {
		return nil, nil, err
	}
	return login, signup, nil
}

// limitBody caps the request body. Reads past the cap fail, which the
// handlers report as a bad request.
func limitBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// filesOnly serves stored objects by exact key. Directories report as
// missing so /media/ cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
//
// Shutdown order: stop accepting connections, give in-flight requests 30s,
// then close Redis and the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database and the Redis client.
func (s *Server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
