// Command loom-server runs the demo chat application: login, per-room
// message history, and a WebSocket endpoint broadcasting through the
// telemetry hub, all served behind the web dispatcher's routing, rate
// limiting, and static file handler. Boots with a structured slog
// sequence and shuts down gracefully on SIGTERM/SIGINT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loom/internal/config"
	"loom/internal/demo/auth"
	"loom/internal/demo/chatapp"
	"loom/internal/demo/chatstore"
	"loom/internal/httputil"
	"loom/internal/netutil"
	"loom/internal/telemetry"
	"loom/internal/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("booting loom-server")

	cfg, err := config.Load(os.Getenv("LOOM_CONFIG"))
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := chatstore.Open(ctx, cfg.DatabaseURL)
	cancelBoot()
	if err != nil {
		logger.Error("chatstore connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureSchema(schemaCtx); err != nil {
		cancelSchema()
		logger.Error("chatstore schema init failed", "error", err)
		os.Exit(1)
	}
	cancelSchema()

	userStore, err := auth.NewStore(map[string]string{
		"demo": "demo-password",
	})
	if err != nil {
		logger.Error("auth store init failed", "error", err)
		os.Exit(1)
	}
	authService := auth.NewService(userStore, []byte(cfg.JWTSecret), 24*time.Hour)

	hub := telemetry.NewHub()

	handlers := &chatapp.Handlers{
		Auth:      authService,
		Store:     store,
		Hub:       hub,
		Logger:    logger,
		PingEvery: cfg.WebSocketPing,
		Deflate:   cfg.PermessageDeflate,
	}

	dispatcher := web.NewDispatcher(logger)
	dispatcher.XHeaders = cfg.XHeaders
	if cfg.CookieSecret != "" {
		dispatcher.CookieSigner = httputil.NewSingleSecretSigner([]byte(cfg.CookieSecret))
	}

	mustRoute := func(name, path string, methods []string, h http.Handler) {
		rt, err := web.NewRoute(name, "", path, methods, h)
		if err != nil {
			logger.Error("invalid route pattern", "name", name, "error", err)
			os.Exit(1)
		}
		dispatcher.AddRoute(rt)
	}

	mustRoute("login", `^/login$`, []string{http.MethodPost}, http.HandlerFunc(handlers.Login))
	mustRoute("history", `^/rooms/[^/]+/history$`, []string{http.MethodGet}, http.HandlerFunc(handlers.History))
	mustRoute("ws", `^/ws/[^/]+$`, nil, http.HandlerFunc(handlers.Room))
	mustRoute("static", `^/static/`, []string{http.MethodGet}, web.NewStaticFileHandler(cfg.StaticRoot, "/static/", logger))
	mustRoute("healthz", `^/healthz$`, []string{http.MethodGet}, web.NewHealthHandler(store.Ping))

	limiter := web.NewRateLimiter(10, 30, 5*time.Minute)
	defer limiter.Stop()

	var handler http.Handler = dispatcher
	handler = limiter.Middleware(handler)
	handler = web.GZipContentEncoding(handler)
	handler = web.RequestID(handler)

	ln, err := netutil.Listen(cfg.Addr, cfg.ReusePort)
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  cfg.IdleConnTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("loom-server listening", "addr", cfg.Addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("loom-server shutdown complete")
}
