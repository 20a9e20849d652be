package main

import (
	"context"
	"fmt"
	"kuro/internal"
	"kuro/repositories"
	"kuro/runtime"
	"kuro/runtime/workers"
	"kuro/services"
	"kuro/store"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and returns once the console is done,
// so that every defer runs before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	liveStore := store.NewBadgerStore(db, log)
	defer liveStore.Close()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Control loop under supervision
	loop := runtime.NewLoop(log, config.MailboxSize)
	defer loop.Close()
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(loop, workers.NewMailboxMonitor(log, loop, config.MetricInterval, config.LowCapacityThreshold))
	go sup.Run(ctx)
	defer sup.Stop()

	// 5. Services
	session := services.NewSession()
	defer session.End()
	authService := services.NewAuthService(log, repositories.NewCredentialRepository(db), liveStore,
		session, []byte(config.JWTSecret), config.AuthTokenDuration)
	chat := services.NewChatService(log, liveStore, loop, runtime.NewRegistry(), session)

	console := NewConsole(log, os.Stdout, authService, session, chat)
	go console.Render(ctx)

	if config.Email != "" {
		if err = console.enter(ctx, false, config.Email, config.Password); err != nil {
			log.Warn("Automatic login failed", "email", config.Email, "error", err)
		}
	}

	// 6. Wait for /quit, EOF or a signal
	done := make(chan error, 1)
	go func() { done <- console.Serve(ctx, os.Stdin) }()
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-done:
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}
	log.Info("Program stopped cleanly")
	return nil
}
