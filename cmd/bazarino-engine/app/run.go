package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/wirangar/bazarino-bot/configs"
	"github.com/wirangar/bazarino-bot/internal/adapter/cache"
	apihttp "github.com/wirangar/bazarino-bot/internal/adapter/http"
	"github.com/wirangar/bazarino-bot/internal/adapter/http/middleware"
	"github.com/wirangar/bazarino-bot/internal/adapter/kafka"
	"github.com/wirangar/bazarino-bot/internal/adapter/payment"
	"github.com/wirangar/bazarino-bot/internal/adapter/queue"
	"github.com/wirangar/bazarino-bot/internal/adapter/sheets"
	"github.com/wirangar/bazarino-bot/internal/catalog"
	"github.com/wirangar/bazarino-bot/internal/discount"
	"github.com/wirangar/bazarino-bot/internal/logging"
	"github.com/wirangar/bazarino-bot/internal/session"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	log := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	log.Info("bazarino-engine: starting up")

	// spreadsheet client (catalog + orders + discounts worksheets)
	sheetClient, err := sheets.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// rabbitmq notifier
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	notifier, err := queue.NewRabbitNotifier(ch, cfg.Rabbit.Exchange)
	if err != nil {
		return nil, nil, err
	}

	// redis-backed session store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}
	sessions := cache.NewRedisSessionStore(rdb, cfg.Redis.SessionTTL)

	// catalog cache with low-stock escalation
	cat := catalog.New(sheetClient,
		catalog.WithTTL(cfg.Catalog.TTL),
		catalog.WithLowStockThreshold(cfg.Catalog.LowStockThreshold),
		catalog.WithAlerter(notifier),
	)
	if err := cat.Refresh(ctx); err != nil {
		// Start anyway: the cache soft-fails and retries on first use.
		log.Warn("initial catalog load failed", "err", err)
	}

	discounts := discount.New(sheetClient, discount.WithTTL(cfg.Discounts.TTL))

	committer := usecase.NewCommitOrder(sheetClient, sheetClient, cat, notifier,
		usecase.WithCASRetries(cfg.Commit.Retries),
		usecase.WithCASBackoff(cfg.Commit.Backoff),
	)

	gateway := payment.NewHTTPGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.Timeout)

	engine := session.NewEngine(cat, discounts, committer, gateway, sessions,
		session.WithCurrency(cfg.Payment.Currency),
	)

	// payment confirmations arrive on kafka
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	grp, err := setupPaymentListener(consumerCtx, cfg, engine, log)
	if err != nil {
		stopConsumer()
		return nil, nil, err
	}

	// handlers + router + middleware
	sh := apihttp.NewSessionHandler(engine)
	chndl := apihttp.NewCatalogHandler(cat)
	ah := apihttp.NewAdminHandler(cat)
	th := apihttp.NewTokenHandler(cfg)
	authz := middleware.NewAuthz(cfg)
	router := apihttp.NewRouter(sh, chndl, ah, th, authz)

	cleanup := func() {
		stopConsumer()
		_ = grp.Close()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupPaymentListener(ctx context.Context, cfg configs.Config, engine *session.Engine, log *slog.Logger) (sarama.ConsumerGroup, error) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}

	h := kafka.NewPaymentEventHandler(engine)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicPayments}, h.Handle)

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("payment consumer stopped", "err", err)
		}
	}()
	return grp, nil
}
