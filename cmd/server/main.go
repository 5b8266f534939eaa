package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/geoconstruct/internal/collab"
	"github.com/inamate/geoconstruct/internal/config"
	"github.com/inamate/geoconstruct/internal/document"
	mw "github.com/inamate/geoconstruct/internal/middleware"
	"github.com/inamate/geoconstruct/internal/scenes"
	"github.com/inamate/geoconstruct/internal/snapshot"
)

// The playground scene is open to anyone and never persisted.
const playgroundSceneID = "scene_playground"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := snapshot.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := snapshot.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	sceneHandler := scenes.NewHandler(store, cfg.EngineOptions())

	// Document loader for the collaboration hub
	docLoader := func(ctx context.Context, sceneID string) (*document.Document, error) {
		if sceneID == playgroundSceneID {
			return document.NewSampleDocument(), nil
		}
		return store.LoadDocument(ctx, sceneID)
	}

	// Document saver for the collaboration hub
	docSaver := func(ctx context.Context, sceneID string, doc *document.Document) error {
		if sceneID == playgroundSceneID {
			return nil
		}
		return store.SaveDocument(ctx, sceneID, doc)
	}

	hub := collab.NewHub(docLoader, docSaver, cfg.EngineOptions(), cfg.SaveInterval)
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"database unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	sceneHandler.Routes(api)

	// WebSocket endpoint
	originPatterns := websocketOrigins(cfg.Origins())
	r.HandleFunc("/ws/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, store, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty scenes
		slog.Info("saving all scenes...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, store *snapshot.Store, originPatterns []string) {
	sceneID := mux.Vars(r)["sceneId"]

	if sceneID != playgroundSceneID {
		if _, err := store.GetScene(r.Context(), sceneID); err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				http.Error(w, "scene not found", http.StatusNotFound)
				return
			}
			slog.Error("look up scene", "error", err, "scene", sceneID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = "Anonymous"
	}
	userID := "anon-" + uuid.New().String()[:8]

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, userID, displayName, sceneID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// websocketOrigins turns allowed CORS origins into the host patterns the
// websocket handshake checks.
func websocketOrigins(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
