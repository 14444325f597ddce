/*
Package main is the entry point for the GYMbro console client.

It is responsible for loading configuration, initializing the global logging system,
opening the session store, wiring the REST client, auth service, feed cache and chat
transport, optionally serving the local diagnostics listener, and running the console
until the user quits or the process receives SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymbro/internal/app/api"
	"gymbro/internal/app/auth"
	"gymbro/internal/app/chat"
	"gymbro/internal/app/feed"
	"gymbro/internal/app/session"
	"gymbro/internal/configs"
	"gymbro/internal/handler"
	"gymbro/internal/pkg/logx"
)

func main() {
	// Load configuration from .env and environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("api_url", cfg.APIURL).
		Str("socket_url", cfg.SocketURL).
		Str("store_backend", cfg.StoreBackend).
		Bool("google_enabled", cfg.GoogleEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open session store", "backend", cfg.StoreBackend)
	}
	defer closeStore()

	sessions, err := session.Open(ctx, store)
	if err != nil {
		logx.Fatal(err, "Failed to restore session")
	}

	client := api.NewClient(api.Options{
		BaseURL: cfg.APIURL,
		Session: sessions,
		HTTPClient: &http.Client{
			Transport: logx.Transport(nil),
			Timeout:   cfg.RequestTimeout,
		},
		OnAuthFailure: func(redirect string) {
			fmt.Fprintf(os.Stdout, "\nYour session has ended. Please log in again (%s).\n", redirect)
		},
	})

	authService := auth.NewService(client, sessions, auth.GoogleConfig(cfg))

	feedCache := feed.NewCache(client, store, sessions.UserID)
	if err := feedCache.Load(ctx); err != nil {
		logx.Warn("Discarding persisted feed state", "error", err.Error())
	}

	transport := chat.NewTransport(chat.Options{
		SocketURL:      cfg.SocketURL,
		Session:        sessions,
		REST:           client,
		ReconnectDelay: cfg.ReconnectDelay,
		TypingTimeout:  cfg.TypingTimeout,
	})
	transport.Start(ctx)

	var server *http.Server
	if cfg.DebugAddr != "" {
		server = &http.Server{
			Addr:         cfg.DebugAddr,
			Handler:      handler.Router(&handler.AppDeps{Config: cfg, Session: sessions, Chat: transport}),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			logx.Info("Diagnostics listener starting", "addr", cfg.DebugAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Error(err, "Diagnostics listener failed")
			}
		}()
	}

	c := &console{
		client:    client,
		auth:      authService,
		sessions:  sessions,
		feed:      feedCache,
		transport: transport,
		out:       os.Stdout,
	}
	c.run(ctx, os.Stdin)

	logx.Info("Shutting down...")

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Diagnostics listener forced to shutdown")
		}
	}

	transport.Close()

	logx.Info("Client stopped.")
}

// openStore builds the configured session store and a function releasing it.
func openStore(ctx context.Context, cfg *configs.AppConfig) (session.Store, func(), error) {
	switch cfg.StoreBackend {
	case configs.StoreRedis:
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.StoreNamespace)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logx.Error(err, "Failed to close redis store")
			}
		}, nil

	case configs.StoreMemory:
		return session.NewMemoryStore(), func() {}, nil

	default:
		store, err := session.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		logx.Debug("Session file opened", "path", store.Path())
		return store, func() {}, nil
	}
}
