package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AkZcH/MutexTalk/internal/admin"
	"github.com/AkZcH/MutexTalk/internal/app"
	"github.com/AkZcH/MutexTalk/internal/audit"
	"github.com/AkZcH/MutexTalk/internal/chat"
	"github.com/AkZcH/MutexTalk/internal/command"
	commandhttp "github.com/AkZcH/MutexTalk/internal/command/http"
	"github.com/AkZcH/MutexTalk/internal/observability"
	"github.com/AkZcH/MutexTalk/internal/permit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mutextalk stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}()
	logger.Info("store opened", slog.String("driver", cfg.StoreDriver))

	auditFile, err := audit.OpenFile(cfg.AuditFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditFile.Close(); err != nil {
			logger.Warn("close audit file", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	arbiter := permit.NewArbiter()
	metrics.TrackPermit(func() (bool, bool) {
		st := arbiter.Status()
		return !st.Available, st.Enabled
	})

	recorder := audit.New(store, auditFile, audit.WithLogger(logger), audit.WithMetrics(metrics))
	messages := chat.NewService(permit.NewGate(arbiter), store, arbiter, recorder, logger)
	adminGate := admin.NewGate(admin.NewAllowList(cfg.AdminUsers...), arbiter, store, recorder, logger)
	dispatcher := command.NewDispatcher(arbiter, messages, adminGate, recorder,
		command.WithLogger(logger), command.WithMetrics(metrics))

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		CommandHandler: commandhttp.NewHandler(logger, dispatcher, adminGate),
		Health:         app.StoreHealth(store),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if holder, released := arbiter.ForceRelease(); released {
			logger.Warn("permit cleared on shutdown", slog.String("holder", holder))
		}
		return err
	})
	return g.Wait()
}
