package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"carbon-monitor/internal/aggregator"
	"carbon-monitor/internal/cache"
	"carbon-monitor/internal/config"
	"carbon-monitor/internal/consumer"
	"carbon-monitor/internal/evaluator"
	"carbon-monitor/internal/lifecycle"
	"carbon-monitor/internal/locks"
	"carbon-monitor/internal/mqttcommon"
	"carbon-monitor/internal/notifier"
	"carbon-monitor/internal/rediscommon"
	"carbon-monitor/internal/repository"
)

// MonitorService 碳排放监控服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	companyRepo    *repository.CompanyRepository
	readingsRepo   *repository.ReadingsRepository
	principalRepo  *repository.PrincipalRepository
	alertEventRepo *repository.AlertEventsRepository
	companyLocks   *locks.CompanyLocks
	companyCache   *cache.CompanyCache
	projectionSink *cache.ProjectionSink
	aggregator     *aggregator.TelemetryAggregator
	evaluator      *evaluator.ComplianceEvaluator
	lifecycle      *lifecycle.Manager
	dispatcher     *consumer.Dispatcher
	pipeline       *consumer.TelemetryPipeline
	mqttConsumer   *consumer.MQTTConsumer
	streamConsumer *consumer.StreamConsumer
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	ctx := context.Background()
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	// 4. 创建 Repository 层
	companyRepo := repository.NewCompanyRepository(db, logger)
	readingsRepo := repository.NewReadingsRepository(db, logger)
	principalRepo := repository.NewPrincipalRepository(db, logger)
	alertEventRepo := repository.NewAlertEventsRepository(db, logger)

	// 5. 创建缓存与投影
	companyCache := cache.NewCompanyCache(cfg, redisClient, logger)
	recordSource := cache.NewCompanyRecordSource(companyCache, companyRepo, logger)
	projectionSink := cache.NewProjectionSink(cfg, redisClient, logger)

	// 6. 创建核心组件（生命周期与聚合器共用公司锁）
	companyLocks := locks.NewCompanyLocks()
	telemetryAggregator := aggregator.NewTelemetryAggregator(cfg, companyLocks, recordSource, readingsRepo, logger)
	complianceEvaluator := evaluator.NewComplianceEvaluator(cfg)
	lifecycleManager := lifecycle.NewManager(cfg, companyLocks, companyRepo, principalRepo, companyCache, logger)
	webhookNotifier := notifier.NewWebhookNotifier(cfg, logger)

	// 7. 创建消费管道
	pipeline := consumer.NewTelemetryPipeline(
		cfg,
		telemetryAggregator,
		complianceEvaluator,
		alertEventRepo,
		projectionSink,
		webhookNotifier,
		logger,
	)
	dispatcher := consumer.NewDispatcher(cfg.Telemetry.QueueSize, logger)
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, logger)
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, dispatcher, pipeline, logger)

	return &MonitorService{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		mqttClient:     mqttClient,
		logger:         logger,
		companyRepo:    companyRepo,
		readingsRepo:   readingsRepo,
		principalRepo:  principalRepo,
		alertEventRepo: alertEventRepo,
		companyLocks:   companyLocks,
		companyCache:   companyCache,
		projectionSink: projectionSink,
		aggregator:     telemetryAggregator,
		evaluator:      complianceEvaluator,
		lifecycle:      lifecycleManager,
		dispatcher:     dispatcher,
		pipeline:       pipeline,
		mqttConsumer:   mqttConsumer,
		streamConsumer: streamConsumer,
	}, nil
}

// Lifecycle 申请生命周期管理器（注册/审批入口）
func (s *MonitorService) Lifecycle() *lifecycle.Manager {
	return s.lifecycle
}

// Start 启动服务（阻塞直到上下文取消）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting carbon monitor service")

	s.dispatcher.Start(ctx)

	// MQTT 消费者在独立 goroutine 中运行
	mqttErrChan := make(chan error, 1)
	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			mqttErrChan <- err
		}
	}()

	// Streams 消费者主循环
	streamErrChan := make(chan error, 1)
	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			streamErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.dispatcher.Wait()
		return nil
	case err := <-mqttErrChan:
		return fmt.Errorf("mqtt consumer failed: %w", err)
	case err := <-streamErrChan:
		return fmt.Errorf("stream consumer failed: %w", err)
	}
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping carbon monitor service")

	if err := s.mqttConsumer.Stop(); err != nil {
		s.logger.Error("Failed to stop mqtt consumer", zap.Error(err))
	}
	s.mqttClient.Close()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
