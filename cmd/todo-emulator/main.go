// Command todo-emulator serves the todo REST surface from a local JSON file,
// for development against `todo -url http://localhost:9000`.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/emulator"
	"github.com/Makepad-fr/tada-cloud/internal/logging"
	"github.com/Makepad-fr/tada-cloud/internal/store/jsonstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "todo-emulator:", err)
		os.Exit(1)
	}
}

func run() error {
	defaultFile, err := jsonstore.DefaultPath()
	if err != nil {
		return err
	}
	addr := flag.String("addr", "localhost:9000", "listen address")
	file := flag.String("file", defaultFile, "JSON file backing the collection (empty keeps it in memory)")
	token := flag.String("token", "", "require this value in the auth query parameter")
	level := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()

	logger, err := logging.New(logging.Options{Level: *level, Development: true})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []emulator.Option{emulator.WithLogger(logger), emulator.WithToken(*token)}
	if *file != "" {
		opts = append(opts, emulator.WithFile(*file))
	}
	srv, err := emulator.New(opts...)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}

	hs := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr), zap.String("file", *file))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return hs.Shutdown(shutdownCtx)
}
