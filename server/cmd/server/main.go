package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/mirrormap/mirrormap/server/internal/api"
	"github.com/mirrormap/mirrormap/server/internal/auth"
	"github.com/mirrormap/mirrormap/server/internal/config"
	"github.com/mirrormap/mirrormap/server/internal/docstore"
	"github.com/mirrormap/mirrormap/server/internal/metrics"
	"github.com/mirrormap/mirrormap/server/internal/notify"
	"github.com/mirrormap/mirrormap/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("mirrormap-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.HTTPPort,
		"auth_mode", cfg.Auth.Mode,
		"doc_ttl", cfg.Doc.TTL,
		"persist_path", cfg.Doc.PersistPath,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional SQLite persistence behind the document store.
	var persist *docstore.Persist
	if cfg.Doc.PersistPath != "" {
		persist, err = docstore.OpenPersist(cfg.Doc.PersistPath)
		if err != nil {
			slog.Error("failed to open persistence", "path", cfg.Doc.PersistPath, "err", err)
			os.Exit(1)
		}
		defer persist.Close()
	}

	// Document store with background TTL eviction.
	st := docstore.New(cfg.Doc.TTL, persist)
	if persist != nil {
		n, err := st.Restore()
		if err != nil {
			slog.Error("failed to restore documents", "err", err)
			os.Exit(1)
		}
		slog.Info("documents restored", "count", n, "path", cfg.Doc.PersistPath)
		go st.FlushLoop(ctx, cfg.Doc.FlushInterval)
	}
	go st.Run(ctx)

	// Lifecycle webhooks for created and evicted documents.
	notifier := notify.New(cfg.Notify)

	mset := metrics.New()
	mset.DocsFunc(st.Count)
	st.OnEvict(func(doc string) {
		mset.DocEvicted()
		notifier.DocEvicted(doc)
	})

	// Websocket hub — one connection per editing session.
	hub := ws.New(st, mset)
	mset.SessionsFunc(hub.Count)
	hub.OnDocCreated(notifier.DocCreated)
	go hub.Run(ctx)

	// Watch config file for hot-reload. Only webhook targets apply live;
	// port and auth changes need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			notifier.Reload(updated.Notify)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API + websocket hub + metrics on HTTPPort.
	guard := auth.Middleware(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key())
	router := mux.NewRouter()
	router.PathPrefix("/api/").Handler(guard(api.New(st, hub.Count)))
	router.Handle("/ws/docs", guard(hub))
	router.Handle("/metrics", mset.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("mirrormap-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	if persist != nil {
		if err := st.Flush(); err != nil {
			slog.Error("final flush failed", "err", err)
		}
	}
}
