package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-order-service/internal/config"
	ordershttp "food-order-service/internal/controllers/http"
	"food-order-service/internal/infra"
	mmysql "food-order-service/internal/infra/mysql"
	"food-order-service/internal/infra/rabbitmq"
	"food-order-service/internal/inventory"
	"food-order-service/internal/pricing"
	mysqlrepo "food-order-service/internal/repository/mysql"
	"food-order-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		logger.Fatal("db: connect", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DB:           0,
		PoolSize:     200,
		MinIdleConns: 20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	defer redisClient.Close()

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.OrderExchange, logger.Named("events"))
	if err != nil {
		logger.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	engine, err := pricing.NewEngine(cfg.TaxRate)
	if err != nil {
		logger.Fatal("pricing engine", zap.Error(err))
	}

	catalog := infra.NewCachedCatalog(
		infra.NewProductClient(cfg.ProductServiceURL, cfg.ProductTimeout),
		redisClient,
		cfg.ProductCacheTTL,
		logger.Named("catalog"),
	)

	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:            mysqlrepo.NewOrderRepository(db, logger.Named("orders")),
		Catalog:           catalog,
		Inventory:         inventory.NewAdjustor(mysqlrepo.NewStockRepository(db), logger.Named("inventory")),
		Pricing:           engine,
		Numbers:           services.NewOrderNumberGenerator(cfg.OrderNumberPrefix, time.Now),
		Publisher:         publisher,
		Logger:            logger.Named("service"),
		Clock:             time.Now,
		Currency:          cfg.Currency,
		DeliveryFee:       cfg.DeliveryFee,
		DeliveryBuffer:    cfg.DeliveryBuffer,
		MaxNumberAttempts: cfg.OrderNumberMaxAttempts,
	})
	if err != nil {
		logger.Fatal("order service", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := catalog.Warmup(ctx, cfg.WarmupProductIDs); err != nil {
			logger.Warn("failed to warm up cache", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	ordershttp.NewHandler(svc, logger.Named("http")).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting order service", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server run", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	svc.Wait()
}
