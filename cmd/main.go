package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GamjaUnni/nicecatch-backend/internal/config"
	"github.com/GamjaUnni/nicecatch-backend/internal/metrics"
	"github.com/GamjaUnni/nicecatch-backend/internal/room"
	"github.com/GamjaUnni/nicecatch-backend/internal/utils"
	"github.com/GamjaUnni/nicecatch-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Development)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.EnablePrometheus {
		metrics.Init()
	}

	registry := room.NewRegistry(cfg.RoomSize)
	srv := ws.NewServer(cfg, registry, logger)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.PortString()
		logger.Infow("server running", "addr", addr, "room_size", cfg.RoomSize)
		errs <- srv.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		logger.Fatalw("server error", "err", err)
	case sig := <-stop:
		logger.Infow("shutdown signal received", "signal", sig)
	}

	if err := srv.Shutdown(); err != nil {
		logger.Warnw("shutdown error", "err", err)
	}
	logger.Info("shutdown complete")
}
