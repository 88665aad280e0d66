package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/metrics"
	"github.com/raterudder/cezhdo/pkg/mqtt"
	"github.com/raterudder/cezhdo/pkg/server"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/utility"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	s := storage.Configured()
	b := utility.Configured(s)
	p := mqtt.Configured()

	rec, err := metrics.NewWithRegistry(nil)
	if err != nil {
		panic(fmt.Errorf("failed to register metrics: %w", err))
	}

	// init server
	srv := server.Configured(b, rec, p)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	if err := p.Connect(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "mqtt disabled", slog.Any("error", err))
	}
	defer p.Close()

	if err := b.Load(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load bindings", slog.Any("error", err))
		os.Exit(1)
	}

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
