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

	"github.com/npezzotti/go-chatgateway/internal/api"
	"github.com/npezzotti/go-chatgateway/internal/auth"
	"github.com/npezzotti/go-chatgateway/internal/config"
	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/history"
	"github.com/npezzotti/go-chatgateway/internal/rooms"
	"github.com/npezzotti/go-chatgateway/internal/server"
	"github.com/npezzotti/go-chatgateway/internal/stats"
)

func openStore(cfg *config.Config) (database.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return database.NewPgStore(cfg.DatabaseDSN)
	case config.StoreBadger:
		return database.NewBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func main() {
	envFile := flag.String("env-file", ".env", "optional file of GOCHAT_* variables")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-chat] ", log.LstdFlags)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	registry, err := rooms.New(cfg.Rooms)
	if err != nil {
		logger.Fatal("rooms: ", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("store open: ", err)
	}
	logger.Printf("using %s store, rooms %v", cfg.Store, registry.List())

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, store, registry, statsUpdater,
		server.WithRateLimit(cfg.MessageRate, cfg.MessageBurst))
	if err != nil {
		logger.Fatal("new chat server: ", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, store, history.NewService(registry, store),
		auth.NewVerifier(cfg.SigningKey), cfg)

	statsUpdater.Run()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		// sessions or rooms may still be writing; leave stats and the
		// store to process exit
		logger.Println("chat server shutdown:", err)
		cancel()
		os.Exit(1)
	}

	statsUpdater.Stop()
	if err := store.Close(); err != nil {
		logger.Println("store close:", err)
	}

	logger.Println("shutdown complete")
}
