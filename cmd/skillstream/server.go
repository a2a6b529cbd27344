package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/skillstream/api/handlers"
	"github.com/BaSui01/skillstream/config"
	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/internal/server"
	"github.com/BaSui01/skillstream/model"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/skill"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/usage"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 SkillStream 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB

	httpManager *server.Manager
	redisClient *redis.Client

	store     *store.Store
	queue     *queue.Queue
	svc       *skill.Service
	collector *metrics.Collector

	// 后台任务（worker、promoter、用量上报、限流器清理）的生命周期
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, db *gorm.DB) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.collector = metrics.NewCollector("skillstream", s.logger)

	// 2. 初始化存储（含 AutoMigrate）
	st, err := store.New(s.db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	s.store = st

	// 3. 初始化 Redis 队列
	s.redisClient = redis.NewClient(&redis.Options{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	})
	s.queue = queue.New(s.redisClient, s.cfg.Redis.KeyPrefix, s.logger)

	// 4. 构建引擎服务
	s.svc = skill.NewService(skill.Deps{
		Store:     s.store,
		Queue:     s.queue,
		Registry:  s.buildRegistry(),
		Quota:     s.buildQuota(),
		Inventory: skill.NewInventory(s.cfg.Engine.DefaultSkill, skill.NewCommonQnA()),
		Metrics:   s.collector,
		Logger:    s.logger,
	})

	// 5. 启动后台任务
	s.startBackground()

	// 6. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("workers", s.cfg.Engine.Workers),
	)

	return nil
}

// buildRegistry 从配置构建模型目录
func (s *Server) buildRegistry() *model.Registry {
	infos := make([]model.Info, 0, len(s.cfg.Models.Entries))
	for _, e := range s.cfg.Models.Entries {
		infos = append(infos, model.Info{
			Name:          e.Name,
			Provider:      e.Provider,
			Tier:          e.Tier,
			ContextWindow: e.ContextWindow,
		})
	}
	return model.NewRegistry(s.cfg.Models.Default, infos)
}

// buildQuota 从配置构建配额检查器
func (s *Server) buildQuota() model.QuotaChecker {
	if !s.cfg.Quota.Enabled {
		return model.AllowAll{}
	}
	return model.NewRateQuota(s.cfg.Quota.PerMinute, s.cfg.Quota.Burst)
}

// startBackground 启动 worker、延迟任务提升与用量上报
func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCtx, s.bgCancel = ctx, cancel

	s.queue.StartPromoter(ctx, s.cfg.Engine.PromoteInterval,
		skill.ChannelInvokeSkill, skill.ChannelUsageReport)
	s.svc.StartWorkers(ctx, s.cfg.Engine.Workers)
	usage.NewReporter(s.store, s.queue, s.collector, s.logger).Start(ctx)

	// 周期采样队列深度
	go s.sampleQueueDepth(ctx)
}

func (s *Server) sampleQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Engine.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ch := range []string{skill.ChannelInvokeSkill, skill.ChannelUsageReport} {
				depth, err := s.queue.Depth(ctx, ch)
				if err != nil {
					continue
				}
				s.collector.RecordQueueDepth(ch, depth)
			}
		}
	}
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	healthHandler := handlers.NewHealthHandler(s.logger,
		handlers.HealthCheck{Name: "database", Ping: s.pingDatabase},
		handlers.HealthCheck{Name: "redis", Ping: s.pingRedis},
	)

	mux := handlers.NewRouter(
		handlers.NewSkillHandler(s.svc, s.store, s.logger),
		handlers.NewTriggerHandler(s.svc, s.store, s.logger),
		healthHandler,
	)

	// 指标与版本端点
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// ========================================
	// 构建中间件链
	// ========================================
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(s.bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:        fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout: s.cfg.Server.ReadTimeout,
		// 写超时保持 0：SSE 流式响应不能被写超时切断
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) pingDatabase(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Server) pingRedis(ctx context.Context) error {
	return s.redisClient.Ping(ctx).Err()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	// 1. 关闭 HTTP 服务器（停止接收新请求）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(context.Background()); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 停止后台任务（worker 在 Consume 阻塞处退出）
	if s.bgCancel != nil {
		s.bgCancel()
	}

	// 3. 关闭 Redis 连接
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
