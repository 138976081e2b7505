package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/commission/internal/commission/infrastructure"
	"github.com/wyfcoding/commission/internal/commission/infrastructure/messaging"
	"github.com/wyfcoding/commission/internal/commission/infrastructure/persistence/mysql"
	commissionredis "github.com/wyfcoding/commission/internal/commission/infrastructure/persistence/redis"
	commissionconsumer "github.com/wyfcoding/commission/internal/commission/interfaces/consumer"
	httpserver "github.com/wyfcoding/commission/internal/commission/interfaces/http"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/commission/config.toml", "config file path")

// commissionConfig 服务私有配置段（[commission]）。
type commissionConfig struct {
	// BarrierTimeout 每日盈亏屏障的兜底超时，缺省时用 application.DefaultBarrierTimeout。
	BarrierTimeout time.Duration `mapstructure:"barrier_timeout" toml:"barrier_timeout"`
}

// appConfig 平台通用配置加上本服务的私有段。
type appConfig struct {
	config.Config `mapstructure:",squash"`
	Commission    commissionConfig `mapstructure:"commission" toml:"commission"`
}

func main() {
	flag.Parse()

	// 1. Config
	var cfg appConfig
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	logCfg := &logging.Config{
		Service:    cfg.Server.Name,
		Module:     "commission",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. Infrastructure
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(&mysql.OperationExecutionPO{}, &mysql.SwapChargePO{}, &outbox.Message{}); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka & Outbox
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Repositories & Providers
	operationRepo := mysql.NewOperationRepository(db.RawDB())
	swapChargeRepo := mysql.NewSwapChargeRepository(db.RawDB())

	rateSource := infrastructure.NewStaticRateProvider()
	var rates domain.RateProvider = rateSource
	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis, rate cache disabled", "error", err)
	} else {
		rates = commissionredis.NewRateCacheRepository(redisCache.GetClient(), rateSource)
	}

	outboxPublisher := messaging.NewOutboxPublisher(outboxMgr)
	kafkaPublisher := messaging.NewKafkaEventPublisher(kafkaProducer)

	// 7. Application Services
	barrier := application.NewBarrierTracker(kafkaPublisher, domain.TopicPnlProcessCompleted, cfg.Commission.BarrierTimeout, logger.Logger)
	chargingSvc := application.NewChargingService(operationRepo, swapChargeRepo, rates, outboxPublisher, barrier, logger.Logger)
	saga := application.NewChargingSaga(operationRepo, outboxPublisher, logger.Logger)
	aggregate := application.NewAggregateTracker(operationRepo, swapChargeRepo, outboxPublisher, logger.Logger)
	outcomeSvc := application.NewOutcomeService(operationRepo, aggregate, barrier, logger.Logger)
	querySvc := application.NewQueryService(operationRepo, swapChargeRepo)

	// 8. Consumers
	commandHandler := commissionconsumer.NewCommandHandler(chargingSvc, logger.Logger)
	calculatedHandler := commissionconsumer.NewCalculatedHandler(saga, logger.Logger)
	balanceHandler := commissionconsumer.NewBalanceResultHandler(outcomeSvc, logger.Logger)

	consumers := make([]*kafka.Consumer, 0, 10)
	startConsumer := func(topic string, handler func(context.Context, kafkago.Message) error) {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = topic
		if consumerCfg.GroupID == "" {
			consumerCfg.GroupID = "commission-group"
		}
		consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
		consumer.Start(context.Background(), 3, handler)
		consumers = append(consumers, consumer)
	}

	for _, topic := range []string{
		domain.TopicOrderExecuted,
		domain.TopicOnBehalfPerformed,
		domain.TopicSwapProcessStart,
		domain.TopicPnlProcessStart,
	} {
		startConsumer(topic, commandHandler.Handle)
	}
	for _, topic := range []string{
		domain.TopicOrderCommissionCalculated,
		domain.TopicOnBehalfCommissionCalculated,
		domain.TopicSwapCommissionCalculated,
		domain.TopicPnlCalculated,
	} {
		startConsumer(topic, calculatedHandler.Handle)
	}
	for _, topic := range []string{domain.TopicBalanceChanged, domain.TopicBalanceRejected} {
		startConsumer(topic, balanceHandler.Handle)
	}

	// 9. Interfaces
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	httpHandler := httpserver.NewCommissionHandler(querySvc, kafkaPublisher)
	httpHandler.RegisterRoutes(r.Group("/api"))

	// 10. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		for _, c := range consumers {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
