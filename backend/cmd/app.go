package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/adwski/chatapp/backend/config"
	httpServer "github.com/adwski/chatapp/backend/server/http"
	websocketServer "github.com/adwski/chatapp/backend/server/websocket"
	"github.com/adwski/chatapp/backend/service"
	"github.com/adwski/chatapp/backend/storage/sqlite"
	sw "github.com/adwski/chatapp/backend/switch"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sqlite.New(ctx, sqlite.Config{
		Logger: &logger,
		Path:   cfg.DBPath,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if errC := store.Close(); errC != nil {
			logger.Error().Err(errC).Msg("failed to close database")
		}
	}()

	svc := service.NewService(service.Config{
		Store:     store,
		Logger:    &logger,
		JWTSecret: cfg.JWTSecret,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		ChatService:   svc,
		ListenAddr:    cfg.APIListenAddr,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	hub := websocketServer.NewHub(&logger)
	signaling := sw.NewSwitch(sw.Config{
		Logger:  &logger,
		Emitter: hub,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:           &logger,
		Hub:              hub,
		SignalingService: signaling,
		ListenAddr:       cfg.WSListenAddr,
		AllowedOrigin:    cfg.AllowedOrigin,
		QueueSize:        cfg.OutboundQueue,
	})

	// switch is stopped after servers, closing sockets still submit disconnects
	swCtx, swCancel := context.WithCancel(context.Background())
	defer swCancel()
	swWg := &sync.WaitGroup{}
	swWg.Add(1)
	go signaling.Run(swCtx, swWg)

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
	swCancel()
	swWg.Wait()
}
