package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal/archive"
	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/engine"
	"chat-relay/internal/handlers"
	"chat-relay/internal/store"
	"chat-relay/internal/websocket"
	"chat-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Optional message archive; the relay is fully functional without it.
	var archiver *archive.PostgresArchiver
	var engineArchiver engine.Archiver
	var healthArchiver handlers.ArchivePinger
	if cfg.Database.URL != "" {
		a, err := archive.NewPostgresArchiver(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to message archive: %v", err)
		}
		archiver = a
		engineArchiver = a
		healthArchiver = a
		defer archiver.Close()
	}

	// Core: message log, coordination engine, broadcast hub.
	messageLog := store.NewLog(cfg.Chat.HistoryLimit)
	eng := engine.New(messageLog, engineArchiver)
	hub := websocket.NewHub(eng)
	go hub.Run()

	// Services and handlers
	authService := auth.NewService(cfg)
	sessionHandlers := handlers.NewSessionHandlers(authService)
	messageHandlers := handlers.NewMessageHandlers(messageLog, eng, healthArchiver, cfg)
	wsHandlers := handlers.NewWebSocketHandlers(authService, hub)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, sessionHandlers, messageHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Chat relay started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
	hub.Shutdown()
}

func setupRoutes(mux *http.ServeMux, sessionHandlers *handlers.SessionHandlers, messageHandlers *handlers.MessageHandlers, wsHandlers *handlers.WebSocketHandlers) {
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessionHandlers.CreateSession(w, r)
	})

	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		messageHandlers.GetMessages(w, r)
	})

	mux.HandleFunc("/messages/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		messageHandlers.SearchMessages(w, r)
	})

	mux.HandleFunc("/users", messageHandlers.GetUsers)
	mux.HandleFunc("/health", messageHandlers.Health)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /session")
	logger.Info("   GET  /messages?room&skip&limit")
	logger.Info("   GET  /messages/search?room&query")
	logger.Info("   GET  /users")
	logger.Info("   GET  /health")
}
