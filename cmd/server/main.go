package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/config"
	"github.com/hexdraft/draft-server/internal/httpapi"
	"github.com/hexdraft/draft-server/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	cat := catalog.NewHTTP(ctx, cfg.CatalogURL, cfg.CatalogRefresh, clock, logger)

	reg := registry.New(ctx, registry.Options{
		Clock:         clock,
		Catalog:       cat,
		Logger:        logger,
		TTL:           cfg.RoomTTL,
		SweepInterval: cfg.SweepInterval,
	})

	api := &httpapi.API{Registry: reg, Logger: logger, BaseURL: cfg.PublicBaseURL}
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(api)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("shut down")
}
