package main

import (
	"context"
	"errors"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskledger/api/handler"
	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/internal/config"
	"github.com/fastygo/taskledger/internal/infrastructure/monitor"
	"github.com/fastygo/taskledger/internal/middleware"
	"github.com/fastygo/taskledger/internal/router"
	"github.com/fastygo/taskledger/internal/services"
	"github.com/fastygo/taskledger/internal/services/lifecycle"
	"github.com/fastygo/taskledger/pkg/httpcontext"
	"github.com/fastygo/taskledger/pkg/logger"
	authUC "github.com/fastygo/taskledger/usecase/auth"
	profileUC "github.com/fastygo/taskledger/usecase/profile"
	taskUC "github.com/fastygo/taskledger/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger = zapLogger.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment))

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, err := openStore(appCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("storage init failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	manager.RegisterCloser("storage", store)

	sinks, err := openSinks(appCtx, cfg, zapLogger, manager)
	if err != nil {
		zapLogger.Fatal("event sink init failed", zap.Error(err))
	}

	pingers := make(map[string]monitor.Pinger, len(sinks))
	relaySinks := make([]services.Sink, 0, len(sinks))
	for _, sink := range sinks {
		pingers[sink.Name()] = sink
		relaySinks = append(relaySinks, sink)
	}

	mon := monitor.New(store, pingers, cfg.Events.ProbeInterval, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	relay := services.NewRelay(store, relaySinks, mon, zapLogger, services.RelayConfig{
		Interval:  cfg.Events.RelayInterval,
		BatchSize: cfg.Events.BatchSize,
	})
	relay.Start()
	manager.Register("event_relay", func(ctx context.Context) error {
		relay.Stop(ctx)
		// flush what the last requests committed
		return relay.Drain(ctx)
	})

	authUseCase := authUC.New(store, zapLogger, authUC.Options{BcryptCost: cfg.Admin.BcryptCost})
	if err := bootstrapAdmin(appCtx, authUseCase, cfg.Admin, zapLogger); err != nil {
		zapLogger.Fatal("admin bootstrap failed", zap.Error(err))
	}

	taskUseCase, err := taskUC.New(store, services.NewRelayNotifier(relay), zapLogger, taskUC.Options{
		CacheMaxCost: cfg.Cache.MaxCost,
	})
	if err != nil {
		zapLogger.Fatal("task usecase init failed", zap.Error(err))
	}
	manager.Register("task_cache", func(ctx context.Context) error {
		taskUseCase.Close()
		return nil
	})
	profileUseCase := profileUC.New(store, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, authUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, relay, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Strings("sinks", cfg.Events.Sinks))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// bootstrapAdmin mints the admin capability on first start. The secret is
// logged exactly once; it is not recoverable afterwards.
func bootstrapAdmin(ctx context.Context, uc *authUC.UseCase, cfg config.AdminConfig, zapLogger *zap.Logger) error {
	if cfg.Identity == "" {
		zapLogger.Warn("ADMIN_IDENTITY not set; tasks cannot be cancelled")
		return nil
	}
	minted, err := uc.Minted(ctx)
	if err != nil {
		return err
	}
	if minted {
		zapLogger.Info("admin capability already minted")
		return nil
	}

	secret, _, err := uc.Bootstrap(ctx, domain.Identity(cfg.Identity))
	if errors.Is(err, domain.ErrCapabilityMinted) {
		return nil
	}
	if err != nil {
		return err
	}
	zapLogger.Warn("admin capability secret issued; present it in the "+apiHandler.AdminCapabilityHeader+" header, it will not be shown again",
		zap.String("holder", cfg.Identity),
		zap.String("secret", secret))
	return nil
}
