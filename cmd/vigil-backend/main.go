package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil-backend/common/database"
	"vigil-backend/common/logger"
	mqttcommon "vigil-backend/common/mqtt"
	rediscommon "vigil-backend/common/redis"
	"vigil-backend/internal/config"
	"vigil-backend/internal/consumer"
	"vigil-backend/internal/events"
	httpapi "vigil-backend/internal/http"
	"vigil-backend/internal/metrics"
	"vigil-backend/internal/notify"
	"vigil-backend/internal/repository"
	"vigil-backend/internal/service"
	"vigil-backend/migrations"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化 Logger
	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vigil-backend")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("Starting vigil-backend",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("db_enabled", cfg.DBEnabled),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.Bool("mqtt_enabled", cfg.MQTTEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 记录存储：DB 不可用时退回内存实现
	var (
		store repository.Store
		db    *sql.DB
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err != nil {
			lg.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		} else if err := database.Migrate(d, migrations.FS); err != nil {
			lg.Fatal("Failed to run migrations", zap.Error(err))
		} else {
			db = d
			store = repository.NewPostgresStore(db, lg)
			lg.Info("Postgres store enabled", zap.String("database", cfg.Database.Database))
		}
	}
	if store == nil {
		store = repository.NewMemoryStore()
		lg.Info("Using in-memory store")
	}

	// 事件发布：Redis Streams（可选）
	var (
		publisher   events.Publisher = events.NopPublisher{}
		redisClient *redis.Client
	)
	if cfg.RedisEnabled {
		if rc, err := rediscommon.Connect(ctx, &cfg.Redis); err != nil {
			lg.Warn("Redis enabled but unreachable, events disabled", zap.Error(err))
		} else {
			redisClient = rc
			publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen, lg)
		}
	}

	// 推送：有 VAPID 密钥时启用 Web Push，其余订阅走 webhook
	timeout := time.Duration(cfg.Push.TimeoutSeconds) * time.Second
	policy := notify.EndpointPolicy{
		WebhookHosts:        cfg.Push.WebhookHosts,
		AllowPrivateNetwork: cfg.Push.AllowPrivate,
	}
	if policy.AllowPrivateNetwork {
		lg.Warn("Push endpoints on private networks are allowed")
	}
	routing := &notify.RoutingDeliverer{
		Webhook: notify.NewWebhookDeliverer(timeout, policy),
		Policy:  policy,
	}
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		routing.Push = notify.NewWebPushDeliverer(notify.WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
			TTL:             cfg.Push.TTL,
		}, policy.HTTPClient(timeout))
	} else {
		lg.Warn("VAPID keys not configured, web push disabled")
	}
	dispatcher := notify.NewDispatcher(routing, lg, m, timeout, cfg.Push.Concurrency)

	settingsSvc := service.NewSettingsService(store, lg)
	deviceSvc := service.NewDeviceService(store, publisher, m, lg)
	alertSvc := service.NewAlertService(store, dispatcher, publisher, m, lg)
	pushSvc := service.NewPushService(store, cfg.Push.VAPIDPublicKey, policy, lg)
	dashboardSvc := service.NewDashboardService(store, m, lg)
	familySvc := service.NewFamilyService(store, lg)

	// 设备 MQTT 接入（可选）
	var (
		mqttClient *mqttcommon.Client
		mqttCons   *consumer.MQTTConsumer
	)
	if cfg.MQTTEnabled {
		if c, err := mqttcommon.NewClient(&cfg.MQTT, lg); err != nil {
			lg.Warn("MQTT enabled but connection failed, device ingestion via HTTP only", zap.Error(err))
		} else {
			mqttClient = c
			mqttCons = consumer.NewMQTTConsumer(mqttClient, alertSvc, deviceSvc, cfg.MQTT.QoS, lg)
			if err := mqttCons.Start(ctx); err != nil {
				lg.Fatal("Failed to start MQTT consumer", zap.Error(err))
			}
		}
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Settings:       settingsSvc,
		Devices:        deviceSvc,
		Alerts:         alertSvc,
		Push:           pushSvc,
		Dashboard:      dashboardSvc,
		Family:         familySvc,
		Metrics:        m,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         lg,
	})
	srv := httpapi.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 等待中断信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if mqttCons != nil {
		mqttCons.Stop()
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = rediscommon.Close(redisClient)
	}
	if db != nil {
		_ = database.Close(db)
	}

	lg.Info("Service stopped")
}
