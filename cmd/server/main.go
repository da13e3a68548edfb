// Package main starts the chat server and shuts it down on SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/gochat-hub/internal/logging"
	"github.com/Tyrowin/gochat-hub/internal/metrics"
	"github.com/Tyrowin/gochat-hub/internal/server"
	"github.com/Tyrowin/gochat-hub/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gochat-hub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	host := flag.String("host", "", "listen host (overrides CHAT_HOST)")
	port := flag.Int("port", -1, "listen port (overrides CHAT_PORT)")
	flag.Parse()

	cfg, err := server.LoadConfig(*envFile)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port >= 0 {
		cfg.Port = *port
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, log, metrics.NewRegistry())
	if err != nil {
		return err
	}

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if tErr := shutdownTracing(shutdownCtx); tErr != nil {
		log.WithError(tErr).Warn("Tracer shutdown failed")
	}
	if err != nil {
		log.WithError(err).Error("Shutdown did not complete cleanly")
		return err
	}
	if err := <-served; err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"addr": cfg.Addr()}).Info("Server stopped")
	return nil
}
