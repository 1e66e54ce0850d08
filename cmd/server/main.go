package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/chain"
	"github.com/blues/donation/internal/config"
	"github.com/blues/donation/internal/database"
	"github.com/blues/donation/internal/event"
	"github.com/blues/donation/internal/handler"
	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/money"
	"github.com/blues/donation/internal/monitor"
	"github.com/blues/donation/internal/router"
	"github.com/blues/donation/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
)

func main() {
	// 加载配置
	cfg := config.Load()

	if err := logger.Setup(cfg.Log); err != nil {
		logger.Fatal("Failed to setup logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	policy, err := money.NewPolicy(cfg.Donation.Minimums, cfg.Donation.NetworkMinimums, cfg.Donation.ReceiptThresholds)
	if err != nil {
		logger.Fatal("Invalid donation policy: %v", err)
	}
	rates, err := money.NewStaticRates(cfg.Rates.USD)
	if err != nil {
		logger.Fatal("Invalid usd rates: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statsCache, closeCache := newCache(ctx, cfg)
	defer closeCache()

	publisher := newPublisher(cfg)
	defer publisher.Close()

	donations := logic.NewDonationLogic(db, policy)
	campaigns := logic.NewCampaignLogic(db, cfg.Donation.AggregateRetries)
	reconcile := logic.NewReconcileLogic(db, donations, campaigns, statsCache, publisher)

	// 初始化链客户端
	chains, err := chain.NewManager(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain clients: %v", err)
	}
	defer chains.Close()

	confirmations := monitor.NewConfirmationMonitor(chains, donations, reconcile, monitor.Options{
		Interval:       cfg.MonitorInterval(),
		BatchSize:      cfg.Monitor.BatchSize,
		PoolSize:       cfg.Monitor.PoolSize,
		PendingTimeout: time.Duration(cfg.Monitor.PendingTimeout) * time.Second,
	})
	confirmations.Start()
	defer confirmations.Stop()

	// 启动定时任务
	tasks, err := task.NewTaskManager(
		task.NewReconcileSweepJob(reconcile, time.Duration(cfg.Task.SweepInterval)*time.Second, cfg.Task.BatchSize),
		task.NewTaxReceiptJob(donations, time.Duration(cfg.Task.ReceiptInterval)*time.Second, cfg.Task.BatchSize),
	)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}
	defer tasks.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(&handler.Services{
		Donations:  donations,
		Campaigns:  campaigns,
		Milestones: logic.NewMilestoneLogic(db),
		Reconcile:  reconcile,
		Analytics:  logic.NewCachedAnalytics(logic.NewAnalyticsLogic(db), statsCache, cfg.CacheTTL()),
		Rates:      rates,
		Chains:     chains,
		Monitor:    confirmations,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}

// newCache 按配置选择统计缓存
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	switch cfg.Cache.Driver {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.Password, cfg.Cache.RedisDB)
		if err != nil {
			logger.Fatal("Failed to connect redis: %v", err)
		}
		return c, func() { _ = c.Close() }
	case "none":
		return cache.Nop{}, func() {}
	default:
		c, err := cache.NewMemoryCache(ctx, cfg.CacheTTL())
		if err != nil {
			logger.Fatal("Failed to create memory cache: %v", err)
		}
		return c, func() { _ = c.Close() }
	}
}

// newPublisher 按配置选择事件发布方式
func newPublisher(cfg *config.Config) event.Publisher {
	if cfg.Events.Driver != "nats" {
		return event.NewMemPublisher()
	}
	p, err := event.NewNatsPublisher(cfg.Events.NatsURL, cfg.Events.Subject,
		nats.Name("donation-service"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		logger.Fatal("Failed to connect nats: %v", err)
	}
	return p
}
