/*
main.go - Server entrypoint

PURPOSE:
  Wires the engine together and runs the HTTP server: load .env and
  config, open the SQLite store, build the handler and settlement
  scheduler, serve until SIGINT/SIGTERM, then shut down gracefully.
*/
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stayward/condotel-engine/api"
	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/config"
	"github.com/stayward/condotel-engine/store/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:   "condotel-engine",
		Short: "Booking lifecycle and financial settlement engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	if err := root.Execute(); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}

func run() error {
	// .env is a dev convenience; absence is not an error.
	if err := godotenv.Load(); err == nil {
		log.Printf("[Main] Loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Printf("[Main] Store ready at %s", cfg.DBPath)

	handler := api.NewHandler(store, booking.SystemClock{})
	handler.Scheduler.Interval = cfg.SettlementInterval
	if cfg.SchedulerEnabled {
		handler.Scheduler.Start()
		defer handler.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Main] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[Main] Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
