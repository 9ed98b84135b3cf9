package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/archive"
	"github.com/DoyleJ11/crash-backend/internal/config"
	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/DoyleJ11/crash-backend/internal/httpapi"
	"github.com/DoyleJ11/crash-backend/internal/hub"
	"github.com/DoyleJ11/crash-backend/internal/lobby"
	"github.com/DoyleJ11/crash-backend/internal/logger"
	"github.com/DoyleJ11/crash-backend/internal/metrics"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		store    *archive.Store
		recorder *archive.Recorder
		rounds   httpapi.RoundLister
		archived = make(chan error, 1)
	)
	if cfg.DatabaseURL != "" {
		store, err = archive.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open round archive", zap.Error(err))
		}
		defer store.Close()
		rounds = store
		recorder = archive.NewRecorder(store, archive.DefaultQueueSize, log.Named("archive"))
		go func() { archived <- recorder.Run(ctx) }()
		log.Info("round archive enabled")
	} else {
		close(archived)
		log.Info("round archive disabled; DATABASE_URL is empty")
	}

	factory := func(ctx context.Context, code string) *lobby.Lobby {
		listeners := []engine.Listener{m}
		if recorder != nil {
			listeners = append(listeners, recorder.ForTable(code))
		}
		return lobby.NewLobby(ctx, lobby.Deps{
			Code:      code,
			Rules:     cfg.Rules,
			Listeners: listeners,
			Logger:    log.Named("lobby"),
		})
	}

	h := hub.NewHub(ctx, factory, log.Named("hub"))
	// rounds run from process start
	h.Ensure(cfg.DefaultTable)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:     h,
			Metrics: m,
			Rounds:  rounds,
			Origins: cfg.AllowedOrigins,
			Logger:  log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("default_table", cfg.DefaultTable))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server", zap.Error(err))
	}

	h.Inbox() <- hub.ShutdownHub{}
	<-h.Done()
	if err := <-archived; err != nil {
		log.Warn("archive flush incomplete", zap.Error(err))
	}
	log.Info("stopped")
}
