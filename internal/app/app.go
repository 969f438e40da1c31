// Package app 提供质量配置服务的应用入口
//
// ## 依赖
// - PostgreSQL: 规则, 配置, 激活规则, 变更日志
// - Redis: 激活规则索引, 定时任务分布式锁
// - Kafka: 内置配置变更摘要 (可选)
//
// ## 定时任务
// - builtin-sync: 从声明文件同步内置配置
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/config"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/index"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/kafka"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/repository"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/scheduler"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/service"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// App 质量配置服务应用
type App struct {
	cfg *config.Config

	// 基础设施
	db          *gorm.DB
	redisClient redis.UniversalClient
	notifier    *kafka.ChangeNotifier
	httpServer  *http.Server

	// 服务
	service   *service.QualityProfileService
	scheduler *scheduler.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Service 返回质量配置服务
func (a *App) Service() *service.QualityProfileService {
	return a.service
}

// Run 启动应用
func (a *App) Run() error {
	if err := a.initDB(); err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	if err := a.initRedis(); err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}
	if err := a.initNotifier(); err != nil {
		return fmt.Errorf("failed to init kafka producer: %w", err)
	}

	a.service = service.NewQualityProfileService(
		repository.NewActivationStore(repository.NewRepository(a.db)),
		index.NewActiveRuleIndex(a.redisClient),
		a.notifier,
		service.Config{
			PropagateBuiltIn: a.cfg.BuiltIn.Propagate,
			BulkPageSize:     a.cfg.Activation.BulkPageSize,
		},
	)

	if err := a.initScheduler(); err != nil {
		return fmt.Errorf("failed to init scheduler: %w", err)
	}
	a.scheduler.Start()

	a.startHTTP()
	return nil
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down qprofile service...")

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			logger.Error("kafka producer close", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	if a.db != nil {
		sqlDB, _ := a.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	a.cancel()
	logger.Info("qprofile service stopped")
	return nil
}

// initDB 初始化数据库
func (a *App) initDB() error {
	db, err := gorm.Open(postgres.Open(a.cfg.Postgres.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(a.cfg.Postgres.MaxConnections)
	sqlDB.SetMaxIdleConns(a.cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)

	a.db = db
	logger.Info("database connected",
		zap.String("host", a.cfg.Postgres.Host),
		zap.String("database", a.cfg.Postgres.Database))

	if a.cfg.Postgres.AutoMigrate {
		if err := a.db.AutoMigrate(model.Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("database migrated")
	}
	return nil
}

// initRedis 初始化 Redis
func (a *App) initRedis() error {
	a.redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    a.cfg.Redis.Addresses,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	logger.Info("redis connected", zap.Strings("addresses", a.cfg.Redis.Addresses))
	return nil
}

// initNotifier 初始化变更通知, Kafka 未启用时不发送
func (a *App) initNotifier() error {
	var producer sarama.SyncProducer
	if a.cfg.Kafka.Enabled && a.cfg.Notification.Enabled {
		p, err := kafka.NewSyncProducer(&kafka.Config{
			Brokers:  a.cfg.Kafka.Brokers,
			ClientID: a.cfg.Kafka.ClientID,
		})
		if err != nil {
			return err
		}
		producer = p
		logger.Info("kafka producer created", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	}
	a.notifier = kafka.NewChangeNotifier(producer, a.cfg.Notification.Topic, a.cfg.Notification.Enabled)
	return nil
}

// initScheduler 注册内置配置同步任务
func (a *App) initScheduler() error {
	a.scheduler = scheduler.NewScheduler(a.redisClient)
	if a.cfg.BuiltIn.DefinitionsFile == "" {
		logger.Info("built-in definitions file not configured, sync disabled")
		return nil
	}

	job := scheduler.NewBuiltInSyncJob(a.service, a.cfg.BuiltIn.DefinitionsFile,
		a.cfg.BuiltIn.Timeout(), a.cfg.BuiltIn.LockTTL())
	if err := a.scheduler.RegisterJob(job, a.cfg.BuiltIn.Cron); err != nil {
		return err
	}
	if a.cfg.BuiltIn.SyncOnStartup {
		if result := a.scheduler.RunJob(job); result == "failed" {
			return fmt.Errorf("initial built-in sync failed")
		}
	}
	return nil
}

// startHTTP 启动运维端点: /health, /metrics
func (a *App) startHTTP() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", a.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler: engine,
	}
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
	logger.Info("http server started", zap.Int("port", a.cfg.Service.HTTPPort))
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "ok"}
	code := http.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
