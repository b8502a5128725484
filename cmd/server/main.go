package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boutique-api/config"
	"boutique-api/internal/api"
	"boutique-api/internal/broker"
	"boutique-api/internal/redisclient"
	"boutique-api/internal/service"
	"boutique-api/internal/store"
	"boutique-api/internal/util"
	"boutique-api/internal/worker"
	"boutique-api/internal/yalidine"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		panic(err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer("boutique-api", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	st, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer st.Close()

	redis, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	publisher := broker.NewEventPublisher(producer)

	carrier := yalidine.NewClient(cfg.Yalidine, redis, cfg.Business.CacheTTL)

	geo := service.NewGeoResolver(st)
	orders := service.NewOrderService(st, geo, publisher, cfg.Business.HomeDeliveryFee)
	shipments := service.NewShipmentService(st, carrier, publisher, cfg.Business.FromWilayaID)

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	shipmentWorker := worker.NewShipmentWorker(consumer, shipments)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go func() {
		if err := shipmentWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Shipment worker exited", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(orders, shipments, carrier, st, redis)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	stopWorker()
	if err := shipmentWorker.Stop(); err != nil {
		logger.Warn("Failed to stop shipment worker", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}
