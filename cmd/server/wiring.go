package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/taskledger/internal/config"
	boltInfra "github.com/fastygo/taskledger/internal/infrastructure/bolt"
	"github.com/fastygo/taskledger/internal/infrastructure/eventbus"
	pgInfra "github.com/fastygo/taskledger/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskledger/internal/infrastructure/redis"
	"github.com/fastygo/taskledger/internal/services/lifecycle"
	"github.com/fastygo/taskledger/repository"
	boltRepo "github.com/fastygo/taskledger/repository/bolt"
	"github.com/fastygo/taskledger/repository/memory"
	pgRepo "github.com/fastygo/taskledger/repository/postgres"
)

func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, zapLogger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return nil, err
		}
		return pgRepo.NewStore(pool), nil
	case config.DriverBolt:
		db, err := boltInfra.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		zapLogger.Info("opened bolt ledger", zap.String("path", cfg.Storage.BoltPath))
		return boltRepo.NewStore(db), nil
	default:
		zapLogger.Warn("using in-memory ledger; state is lost on restart")
		return memory.New(), nil
	}
}

func openSinks(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, manager *lifecycle.Manager) ([]eventbus.Sink, error) {
	var sinks []eventbus.Sink
	for _, name := range cfg.Events.Sinks {
		var (
			sink eventbus.Sink
			err  error
		)
		switch name {
		case config.SinkLog:
			sink = eventbus.NewLog(zapLogger)
		case config.SinkRedis:
			client, cerr := redisInfra.NewClient(ctx, cfg.Redis)
			if cerr != nil {
				return nil, fmt.Errorf("redis: %w", cerr)
			}
			manager.RegisterCloser("redis", client)
			sink = eventbus.NewRedisStream(client, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
		case config.SinkKafka:
			sink, err = eventbus.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		case config.SinkNATS:
			sink, err = eventbus.ConnectNATS(ctx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix)
		}
		if err != nil {
			return nil, err
		}
		manager.RegisterCloser("sink_"+name, sink)
		zapLogger.Info("event sink enabled", zap.String("sink", name))
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
