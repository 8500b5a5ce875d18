package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/access"
	"github.com/medreza/honcho-benefit-service/pkg/cache"
	"github.com/medreza/honcho-benefit-service/pkg/catalog"
	"github.com/medreza/honcho-benefit-service/pkg/config"
	"github.com/medreza/honcho-benefit-service/pkg/database"
	"github.com/medreza/honcho-benefit-service/pkg/handlers"
	"github.com/medreza/honcho-benefit-service/pkg/ledger"
	"github.com/medreza/honcho-benefit-service/pkg/rabbitmq"
	"github.com/medreza/honcho-benefit-service/pkg/repository/memory"
	"github.com/medreza/honcho-benefit-service/pkg/repository/mongodb"
	"github.com/medreza/honcho-benefit-service/pkg/repository/postgres"
	"github.com/medreza/honcho-benefit-service/pkg/stats"
	"github.com/medreza/honcho-benefit-service/pkg/token"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type store interface {
	catalog.Store
	ledger.Store
	ledger.AuditStore
	access.MemberStore
	access.MerchantStore
}

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	configureLogging(cfg)

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer closeStore()

	benefitCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize cache: %v", err)
	}
	defer closeCache()

	deps := access.Deps{
		Members:   st,
		Merchants: st,
		Exchange:  cfg.EventsExchange,
		Codec:     token.NewCodec(cfg.TokenScheme),
	}

	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logrus.WithError(err).Warn("Failed to connect to RabbitMQ, events will not be published")
		} else {
			defer producer.Close()
			deps.Publisher = producer
		}
	}

	deps.Catalog = catalog.New(st, benefitCache)
	deps.Ledger = ledger.New(st)
	deps.Audit = ledger.NewAuditLog(st)

	service := access.NewService(deps)
	aggregator := stats.NewAggregator(st, deps.Catalog, deps.Ledger)

	router := handlers.NewRouter(
		handlers.NewAccessHandler(service),
		handlers.NewBenefitHandler(service, aggregator),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logrus.Infof("Starting service on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start service: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Service forced to shutdown: %v", err)
	}

	logrus.Info("Service exited")
}

func configureLogging(cfg config.Config) {
	if cfg.LogFormat == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := database.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logrus.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		}
		return mongodb.NewStore(db), closeFn, nil
	case config.StorePostgres:
		pool, err := database.InitPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.StoreMemory:
		logrus.Warn("Using in-memory store, data will not survive a restart")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openCache(ctx context.Context, cfg config.Config) (cache.Cache, func(), error) {
	if cfg.CacheDriver != config.CacheRedis {
		return cache.NewLocal(cfg.CacheTTL()), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
	return cache.NewRedis(client, cfg.CacheKeyPrefix, cfg.CacheTTL()), closeFn, nil
}
